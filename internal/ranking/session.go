package ranking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/routecast/routecast/internal/forecast"
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStaleRun        = errors.New("ranking run superseded by a newer target")
)

// DefaultMaxSessions bounds the in-memory session store.
const DefaultMaxSessions = 1000

// Session holds uploaded routes and the latest ranking for them. Each target
// change starts a new run generation; only the current generation may
// publish its result.
type Session struct {
	ID        string
	CreatedAt time.Time

	seq        uint64
	mu         sync.Mutex
	routes     []Route
	intervalKm float64
	target     forecast.Target
	generation uint64
	running    bool
	ranking    *Ranking
	lastErr    error
	updatedAt  time.Time
}

// SessionView is a consistent copy of a session's state.
type SessionView struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	IntervalKm float64   `json:"intervalKm"`
	Routes     []string  `json:"routes"`
	Generation uint64    `json:"generation"`
	Running    bool      `json:"running"`
	Ranking    *Ranking  `json:"ranking,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// View snapshots the session.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.routes))
	for i, r := range s.routes {
		names[i] = r.Name
	}
	v := SessionView{
		ID:         s.ID,
		Target:     s.target.Raw,
		IntervalKm: s.intervalKm,
		Routes:     names,
		Generation: s.generation,
		Running:    s.running,
		Ranking:    s.ranking,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	return v
}

// Generation returns the current run generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// begin starts a new generation for target and returns it with the inputs
// the run should use.
func (s *Session) begin(target forecast.Target) (uint64, []Route, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.target = target
	s.running = true
	return s.generation, s.routes, s.intervalKm
}

// complete publishes a finished run if it is still current.
func (s *Session) complete(gen uint64, r *Ranking, err error, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStaleRun
	}
	s.running = false
	s.updatedAt = now
	if err != nil {
		s.lastErr = err
		return err
	}
	s.ranking = r
	s.lastErr = nil
	return nil
}

// Run ranks the session's routes for target. A run that finishes after a
// newer one has started returns ErrStaleRun and leaves the session untouched.
func (s *Service) Run(ctx context.Context, sess *Session, apiKey string, target forecast.Target) (*Ranking, error) {
	gen, routes, intervalKm := sess.begin(target)

	r, err := s.Rank(ctx, apiKey, routes, target, WithIntervalKm(intervalKm))
	if cerr := sess.complete(gen, r, err, s.now().UTC()); cerr != nil {
		if errors.Is(cerr, ErrStaleRun) {
			s.logger.Debug().
				Str("session_id", sess.ID).
				Uint64("generation", gen).
				Msg("discarding stale ranking run")
		}
		return nil, cerr
	}
	return r, nil
}

// SessionStore keeps sessions in memory. When full, the oldest session is
// evicted.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	seq      uint64
	now      func() time.Time
}

// NewSessionStore creates a store holding at most max sessions
// (DefaultMaxSessions when max <= 0).
func NewSessionStore(max int) *SessionStore {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		max:      max,
		now:      time.Now,
	}
}

// Create stores a new session for routes.
func (st *SessionStore) Create(routes []Route, intervalKm float64) *Session {
	now := st.now().UTC()
	sess := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  now,
		routes:     append([]Route(nil), routes...),
		intervalKm: intervalKm,
		updatedAt:  now,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for len(st.sessions) >= st.max {
		st.evictOldestLocked()
	}
	st.seq++
	sess.seq = st.seq
	st.sessions[sess.ID] = sess
	return sess
}

// Get returns the session with id.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session with id.
func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *SessionStore) evictOldestLocked() {
	var oldest *Session
	for _, sess := range st.sessions {
		if oldest == nil || sess.seq < oldest.seq {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(st.sessions, oldest.ID)
	}
}
