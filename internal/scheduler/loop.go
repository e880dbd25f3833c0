package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/probe"
)

// Loop drives one probe: iteration, then Delay, until ctx is cancelled or
// Rounds iterations have run. Rounds == 0 means forever.
type Loop struct {
	Logger *zap.Logger
	Probe  probe.Probe
	Delay  time.Duration
	Rounds int
}

func NewLoop(logger *zap.Logger, p probe.Probe, delay time.Duration, rounds int) *Loop {
	if delay < 0 {
		delay = 0
	}
	if rounds < 0 {
		rounds = 0
	}
	return &Loop{
		Logger: logger.With(zap.String("probe", p.Name())),
		Probe:  p,
		Delay:  delay,
		Rounds: rounds,
	}
}

// Run blocks until the loop finishes and reports how many iterations ran.
func (l *Loop) Run(ctx context.Context) int {
	n := 0
	for {
		if ctx.Err() != nil {
			l.Logger.Info("loop_stopped", zap.Int("rounds", n), zap.String("reason", "cancelled"))
			return n
		}

		start := time.Now()
		l.Probe.RunOnce(ctx)
		n++
		l.Logger.Debug("loop_iteration",
			zap.Int("round", n),
			zap.Duration("took", time.Since(start)),
		)

		if l.Rounds > 0 && n >= l.Rounds {
			l.Logger.Info("loop_stopped", zap.Int("rounds", n), zap.String("reason", "rounds"))
			return n
		}

		if !wait(ctx, l.Delay) {
			l.Logger.Info("loop_stopped", zap.Int("rounds", n), zap.String("reason", "cancelled"))
			return n
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
