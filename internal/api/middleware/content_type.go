package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/routecast/routecast/internal/api/models"
)

// ContentTypeJSON sets the Content-Type header to application/json unless a
// handler has already chosen one.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireContentType rejects POST, PUT and PATCH requests whose body is not
// one of the given media types with a 415 problem. An absent Content-Type is
// allowed.
func RequireContentType(mediaTypes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			if ct == "" {
				next.ServeHTTP(w, r)
				return
			}
			mt, _, err := mime.ParseMediaType(ct)
			if err == nil {
				for _, want := range mediaTypes {
					if strings.EqualFold(mt, want) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			problem := models.NewUnsupportedMediaType(GetRequestID(r.Context()),
				"Content-Type must be one of: "+strings.Join(mediaTypes, ", "))
			problem.Instance = r.URL.Path
			problem.Write(w)
		})
	}
}

// RequireJSON is RequireContentType("application/json").
func RequireJSON(next http.Handler) http.Handler {
	return RequireContentType("application/json")(next)
}
