package forecastcache

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() {
	encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if codecErr != nil {
		return
	}
	decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
}

// compress encodes a payload for storage. EncodeAll and DecodeAll are safe
// for concurrent use on a shared encoder/decoder.
func compress(payload []byte) ([]byte, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, fmt.Errorf("zstd init: %w", codecErr)
	}
	return encoder.EncodeAll(payload, make([]byte, 0, len(payload)/4)), nil
}

func decompress(stored []byte) ([]byte, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, fmt.Errorf("zstd init: %w", codecErr)
	}
	out, err := decoder.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
