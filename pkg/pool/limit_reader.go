package pool

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// LimitReader throttles reads to limit bytes per second.
type LimitReader struct {
	r io.Reader
	l *rate.Limiter
	c context.Context
}

// NewLimitReader wraps r. A non-positive limit returns r unchanged.
func NewLimitReader(ctx context.Context, r io.Reader, limit int) io.Reader {
	if limit <= 0 {
		return r
	}
	return &LimitReader{
		r: r,
		l: rate.NewLimiter(rate.Limit(limit), limit),
		c: ctx,
	}
}

func (lr *LimitReader) Read(p []byte) (int, error) {
	// never ask the limiter for more than its burst
	if len(p) > lr.l.Burst() {
		p = p[:lr.l.Burst()]
	}
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.l.WaitN(lr.c, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
