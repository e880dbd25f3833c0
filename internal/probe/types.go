package probe

import (
	"context"
	"net/http"
	"time"
)

// Probe is one independently scheduled check. RunOnce performs a single
// iteration and persists its record(s); it never returns an error because a
// failed check is itself a result.
type Probe interface {
	Name() string
	RunOnce(ctx context.Context)
}

// CheckResult holds the outcome of a single HTTP request.
type CheckResult struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message"`
	LatencyMS  float64     `json:"latency_ms,omitempty"`
	Header     http.Header `json:"-"`
	Err        error       `json:"-"`
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
