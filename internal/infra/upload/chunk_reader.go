package upload

import (
	"errors"
	"io"
	"sync"

	"transcribe-jobs/internal/domain"
)

// DefaultChunkSize matches the service's recommended upload read size (5 MiB).
const DefaultChunkSize = 5242880

// ChunkReader streams a source in fixed-size chunks. Only one chunk is held in
// memory at a time, chunks are delivered in order and the source is consumed once.
type ChunkReader struct {
	src       io.Reader
	buf       []byte
	pending   []byte
	eof       bool
	chunks    int
	bytes     int64
	closeOnce sync.Once
	closer    io.Closer
	onChunk   func(n int)
}

// NewChunkReader wraps src. If src is an io.Closer it is closed once the reader is drained
// or Close is called.
func NewChunkReader(src io.Reader, chunkSize int) *ChunkReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	r := &ChunkReader{src: src, buf: make([]byte, chunkSize)}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// OnChunk registers a callback invoked with the size of every chunk read from the source.
func (r *ChunkReader) OnChunk(fn func(n int)) { r.onChunk = fn }

// Prime reads the first chunk so an empty source is reported before any request is sent.
func (r *ChunkReader) Prime() error {
	if r.chunks > 0 || r.eof {
		return nil
	}
	if err := r.fill(); err != nil {
		return err
	}
	if r.chunks == 0 {
		return domain.ErrEmptySource
	}
	return nil
}

// NextChunk returns the next chunk. The slice is only valid until the following call.
// It returns io.EOF once the source is exhausted.
func (r *ChunkReader) NextChunk() ([]byte, error) {
	if len(r.pending) == 0 {
		if r.eof {
			return nil, io.EOF
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
		if len(r.pending) == 0 {
			return nil, io.EOF
		}
	}
	out := r.pending
	r.pending = nil
	return out, nil
}

// Read implements io.Reader on top of NextChunk so the reader can be used as a request body.
func (r *ChunkReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			return 0, err
		}
		if len(r.pending) == 0 {
			return 0, io.EOF
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *ChunkReader) fill() error {
	n, err := io.ReadFull(r.src, r.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.eof = true
		_ = r.Close()
	default:
		return err
	}
	if n > 0 {
		r.pending = r.buf[:n]
		r.chunks++
		r.bytes += int64(n)
		if r.onChunk != nil {
			r.onChunk(n)
		}
	}
	return nil
}

// Close releases the underlying source if it is closable.
func (r *ChunkReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.closer != nil {
			err = r.closer.Close()
		}
	})
	return err
}

// Chunks is the number of chunks read so far.
func (r *ChunkReader) Chunks() int { return r.chunks }

// BytesRead is the number of bytes read from the source so far.
func (r *ChunkReader) BytesRead() int64 { return r.bytes }
