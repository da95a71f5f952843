package crypt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is how much ciphertext is read, decrypted and written at a
// time.
const DefaultChunkSize = 4096

// ProgressFunc receives the number of ciphertext bytes consumed so far.
type ProgressFunc func(done int64)

type options struct {
	chunkSize int
	workers   int
	progress  ProgressFunc
	log       *slog.Logger
}

type Option func(*options)

// WithChunkSize sets the chunk size, which must be a positive multiple of 16.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithWorkers decrypts up to n chunks concurrently. Output order is kept.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress installs a progress callback. In parallel mode it is called
// from the writer goroutine, never concurrently with itself.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// session is the state of one Decrypt call.
type session struct {
	block     cipher.Block
	length    int64
	processed int64
	chunkSize int
	progress  ProgressFunc
}

func newSession(key []byte, length int64, o options) (*session, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	if length <= 0 || length%aes.BlockSize != 0 {
		return nil, errors.Wrapf(ErrInvalidBlockSize, "length %d", length)
	}
	if o.chunkSize <= 0 || o.chunkSize%aes.BlockSize != 0 {
		return nil, errors.Wrapf(ErrInvalidChunkSize, "got %d", o.chunkSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &session{
		block:     block,
		length:    length,
		chunkSize: o.chunkSize,
		progress:  o.progress,
	}, nil
}

// Decrypt reads length bytes of AES-ECB ciphertext from r and writes the
// plaintext to w, dropping the PKCS#7 padding of the last block.
//
// The length must be a non-zero multiple of 16. A source shorter than length
// fails with ErrTruncatedInput. Chunks written before an error stay in w.
func Decrypt(ctx context.Context, key []byte, r io.Reader, length int64, w io.Writer, opts ...Option) error {
	o := options{
		chunkSize: DefaultChunkSize,
		workers:   1,
		progress:  func(int64) {},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.progress == nil {
		o.progress = func(int64) {}
	}

	s, err := newSession(key, length, o)
	if err != nil {
		return err
	}
	o.log.Debug("decrypting", "bytes", length, "chunk", o.chunkSize, "workers", o.workers)

	if o.workers > 1 {
		err = s.runParallel(ctx, r, w, o.workers)
	} else {
		err = s.run(ctx, r, w)
	}
	if err != nil {
		return err
	}
	o.log.Debug("decrypted", "bytes", s.processed)
	return nil
}

func (s *session) chunkLen(offset int64) int {
	if remaining := s.length - offset; remaining < int64(s.chunkSize) {
		return int(remaining)
	}
	return s.chunkSize
}

func (s *session) read(r io.Reader, chunk []byte, offset int64) error {
	n, err := io.ReadFull(r, chunk)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return errors.Wrapf(ErrTruncatedInput, "got %d of %d bytes", offset+int64(n), s.length)
	case err != nil:
		return &IOError{Op: "read", Err: err}
	}
	return nil
}

// decryptChunk decrypts chunk in place and returns the part to write.
func (s *session) decryptChunk(chunk []byte, final bool) ([]byte, error) {
	for j := 0; j < len(chunk); j += aes.BlockSize {
		s.block.Decrypt(chunk[j:j+aes.BlockSize], chunk[j:j+aes.BlockSize])
	}
	if !final {
		return chunk, nil
	}
	return unpad(chunk)
}

func unpad(data []byte) ([]byte, error) {
	p := int(data[len(data)-1])
	if p == 0 || p > aes.BlockSize {
		return nil, errors.Wrapf(ErrCorruptPadding, "padding byte %d", p)
	}
	return data[:len(data)-p], nil
}

func (s *session) write(w io.Writer, out []byte, end int64) error {
	if _, err := w.Write(out); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	s.processed = end
	s.progress(end)
	return nil
}

func (s *session) run(ctx context.Context, r io.Reader, w io.Writer) error {
	buf := make([]byte, s.chunkSize)
	for offset := int64(0); offset < s.length; {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := buf[:s.chunkLen(offset)]
		if err := s.read(r, chunk, offset); err != nil {
			return err
		}
		end := offset + int64(len(chunk))
		out, err := s.decryptChunk(chunk, end == s.length)
		if err != nil {
			return err
		}
		if err := s.write(w, out, end); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

type job struct {
	buf  *[]byte
	data []byte
	end  int64
	out  []byte
	done chan error
}

// runParallel keeps a single reader and a single writer so that output stays
// in offset order; only the block decryption fans out. Read failures travel
// through the ordered queue so every earlier chunk is written first, as in
// the sequential path.
func (s *session) runParallel(ctx context.Context, r io.Reader, w io.Writer, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan *job)
	ordered := make(chan *job, workers)
	pool := sync.Pool{New: func() any {
		b := make([]byte, s.chunkSize)
		return &b
	}}

	g.Go(func() error {
		defer close(jobs)
		defer close(ordered)
		for offset := int64(0); offset < s.length; {
			j := &job{done: make(chan error, 1)}
			err := ctx.Err()
			if err == nil {
				j.buf = pool.Get().(*[]byte)
				j.data = (*j.buf)[:s.chunkLen(offset)]
				err = s.read(r, j.data, offset)
			}
			if err != nil {
				j.done <- err
				select {
				case ordered <- j:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			j.end = offset + int64(len(j.data))
			offset = j.end

			select {
			case ordered <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case jobs <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				out, err := s.decryptChunk(j.data, j.end == s.length)
				j.out = out
				j.done <- err
			}
			return nil
		})
	}

	g.Go(func() error {
		for j := range ordered {
			var err error
			select {
			case err = <-j.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			if err != nil {
				return err
			}
			if err := s.write(w, j.out, j.end); err != nil {
				return err
			}
			pool.Put(j.buf)
		}
		return nil
	})

	return g.Wait()
}
