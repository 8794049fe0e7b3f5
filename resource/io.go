package resource

import (
	"context"
	"io"
)

// Reader throttles reads from r through a Controller.
type Reader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// NewReader wraps r. Each Read is charged for the bytes it returned.
func NewReader(ctx context.Context, r io.Reader, c *Controller) *Reader {
	return &Reader{ctx: ctx, r: r, c: c}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.c.WaitIO(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Writer throttles writes to w through a Controller.
type Writer struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

// NewWriter wraps w. Each Write waits for its full length before writing.
func NewWriter(ctx context.Context, w io.Writer, c *Controller) *Writer {
	return &Writer{ctx: ctx, w: w, c: c}
}

func (w *Writer) Write(p []byte) (int, error) {
	if err := w.c.WaitIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}
