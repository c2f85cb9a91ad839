package chaos

import (
	"context"
	"io"
	"time"
)

// ThrottledReader wraps an upstream response body and applies a latency
// delay before its first read, so the delay falls after the response head
// has been written rather than before it. It backs the ambient, opt-in
// LatencyParams.Streaming flag (SPEC_FULL.md §4.4) — the default
// (non-streaming) latency path sleeps once in the forwarder and never
// constructs one of these.
//
// Grounded on other_examples/Rohith-JN-chaos-proxy__stream.go's
// ThrottledReadCloser: per-chunk delay wrapped around an io.ReadCloser,
// here narrowed to a single delay on the first chunk
// and made cancellable via context, per spec.md §5 ("no shared lock is
// held across any suspension" / suspensions must respond to client-gone).
type ThrottledReader struct {
	io.ReadCloser
	ctx       context.Context
	perChunk  time.Duration
	delivered bool // only the first chunk is delayed, matching TTFB semantics
}

// NewThrottledReader constructs a reader that sleeps perChunk before its
// first Read, then passes every subsequent Read straight through.
func NewThrottledReader(ctx context.Context, rc io.ReadCloser, perChunk time.Duration) *ThrottledReader {
	return &ThrottledReader{ReadCloser: rc, ctx: ctx, perChunk: perChunk}
}

func (t *ThrottledReader) Read(p []byte) (int, error) {
	if !t.delivered {
		t.delivered = true
		if t.perChunk > 0 {
			timer := time.NewTimer(t.perChunk)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-t.ctx.Done():
				return 0, t.ctx.Err()
			}
		}
	}
	return t.ReadCloser.Read(p)
}
