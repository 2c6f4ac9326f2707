package recognize

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/gatepass/internal/raster"
)

type timeoutRecognizer struct {
	next    Recognizer
	timeout time.Duration
}

// WithTimeout bounds every call to r by d. Engines that ignore their context
// are abandoned when d elapses; their result is discarded. A non-positive d
// returns r unchanged.
func WithTimeout(r Recognizer, d time.Duration) Recognizer {
	if d <= 0 {
		return r
	}
	return &timeoutRecognizer{next: r, timeout: d}
}

func (t *timeoutRecognizer) Recognize(ctx context.Context, img *raster.Image, opts Options) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	// Buffered so the engine goroutine never blocks after a timeout.
	ch := make(chan outcome, 1)
	go func() {
		res, err := t.next.Recognize(ctx, img, opts)
		ch <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("recognize: %w", ctx.Err())
	case o := <-ch:
		return o.res, o.err
	}
}
