// Package device provides photo sources for the capture service.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// File captures by reading a single image file.
type File struct {
	Path string
}

// Acquire reads the file. A missing file is unavailable, a denied one aborted.
func (f File) Acquire(ctx context.Context) ([]byte, error) {
	if f.Path == "" {
		return nil, fmt.Errorf("%w: no file configured", domain.ErrCaptureUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCaptureAborted, err)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, classify(f.Path, err)
	}
	return data, nil
}

// Reader captures by draining an io.Reader, typically stdin.
type Reader struct {
	R io.Reader
}

// Stdin reads the photo from standard input.
func Stdin() Reader {
	return Reader{R: os.Stdin}
}

// Acquire reads until EOF. Cancelling ctx abandons the read.
func (r Reader) Acquire(ctx context.Context) ([]byte, error) {
	if r.R == nil {
		return nil, fmt.Errorf("%w: no reader configured", domain.ErrCaptureUnavailable)
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(r.R)
		ch <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrCaptureAborted, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: read: %w", domain.ErrCaptureUnavailable, res.err)
		}
		return res.data, nil
	}
}

// classify maps filesystem errors: permission denied aborts, anything else
// (missing path included) means the source is unavailable.
func classify(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %w", domain.ErrCaptureAborted, path, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrCaptureUnavailable, path, err)
}
