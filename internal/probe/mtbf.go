package probe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

// ComputeMTBF returns the mean gap in seconds between consecutive failure
// times. ok is false when fewer than two failures were seen.
func ComputeMTBF(failures []time.Time) (mtbf float64, ok bool) {
	if len(failures) < 2 {
		return 0, false
	}
	var sum time.Duration
	for i := 1; i < len(failures); i++ {
		sum += failures[i].Sub(failures[i-1])
	}
	return sum.Seconds() / float64(len(failures)-1), true
}

// MTBFSampler requests URL every Interval for Window and persists one
// MTBFRecord summarising the failures seen. The cooldown between windows is
// the scheduling loop's delay.
type MTBFSampler struct {
	Logger   *zap.Logger
	Store    repo.MTBFWriter
	Checker  *HTTPChecker
	URL      string
	Window   time.Duration
	Interval time.Duration

	now func() time.Time
}

func NewMTBFSampler(logger *zap.Logger, store repo.MTBFWriter, checker *HTTPChecker, url string, window, interval time.Duration) *MTBFSampler {
	return &MTBFSampler{
		Logger:   logger,
		Store:    store,
		Checker:  checker,
		URL:      url,
		Window:   window,
		Interval: interval,
		now:      time.Now,
	}
}

func (s *MTBFSampler) Name() string { return "mtbf" }

func (s *MTBFSampler) RunOnce(ctx context.Context) {
	rec, ok := s.Sample(ctx)
	if !ok {
		s.Logger.Info("mtbf_window_abandoned", zap.String("url", s.URL))
		return
	}
	if err := s.Store.AppendMTBF(ctx, &rec); err != nil {
		s.Logger.Warn("mtbf_append_error", zap.String("url", s.URL), zap.Error(err))
	}
}

// Sample runs one measurement window. It returns false if ctx was cancelled
// before the window closed.
func (s *MTBFSampler) Sample(ctx context.Context) (domain.MTBFRecord, bool) {
	var failures []time.Time
	end := s.now().Add(s.Window)

	for s.now().Before(end) {
		res := s.Checker.Check(ctx, s.URL)
		if ctx.Err() != nil {
			return domain.MTBFRecord{}, false
		}
		if !res.Success {
			at := s.now()
			failures = append(failures, at)
			s.Logger.Info("mtbf_failure",
				zap.String("url", s.URL),
				zap.Int("status_code", res.StatusCode),
				zap.String("error_class", errorClass(res.Err)),
				zap.Time("at", at),
			)
		}
		if !sleepCtx(ctx, s.Interval) {
			return domain.MTBFRecord{}, false
		}
	}

	mtbf, ok := ComputeMTBF(failures)
	s.Logger.Info("mtbf_window_closed",
		zap.String("url", s.URL),
		zap.Int("failures", len(failures)),
		zap.Bool("defined", ok),
		zap.Float64("mtbf_s", mtbf),
	)
	return domain.MTBFRecord{URL: s.URL, MTBF: mtbf, Failures: len(failures)}, true
}
