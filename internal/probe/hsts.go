package probe

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

const hstsHeader = "Strict-Transport-Security"

// HSTSProbe fetches URL and records whether the response (after redirects)
// carries a Strict-Transport-Security header.
type HSTSProbe struct {
	Logger  *zap.Logger
	Store   repo.HSTSWriter
	Checker *HTTPChecker
	URL     string
}

func NewHSTSProbe(logger *zap.Logger, store repo.HSTSWriter, checker *HTTPChecker, url string) *HSTSProbe {
	return &HSTSProbe{Logger: logger, Store: store, Checker: checker, URL: url}
}

func (p *HSTSProbe) Name() string { return "hsts" }

func (p *HSTSProbe) RunOnce(ctx context.Context) {
	rec := p.Check(ctx)
	if ctx.Err() != nil {
		return
	}
	if err := p.Store.AppendHSTS(ctx, &rec); err != nil {
		p.Logger.Warn("hsts_append_error", zap.String("url", p.URL), zap.Error(err))
	}
}

// Check performs one request. Any HTTP status counts as a response; only a
// transport failure yields StatusError.
func (p *HSTSProbe) Check(ctx context.Context) domain.HSTSRecord {
	rec := domain.HSTSRecord{URL: p.URL}

	res := p.Checker.Check(ctx, p.URL)
	if res.Err != nil {
		rec.Status = domain.StatusError
		rec.Header = domain.StringPtr(res.Err.Error())
		p.Logger.Info("hsts_error",
			zap.String("url", p.URL),
			zap.String("error_class", errorClass(res.Err)),
			zap.Error(res.Err),
		)
		return rec
	}

	vals, ok := res.Header[hstsHeader]
	if !ok {
		rec.Status = domain.StatusDisabled
		p.Logger.Debug("hsts_checked", zap.String("url", p.URL), zap.Bool("present", false))
		return rec
	}
	v := strings.Join(vals, ", ")
	rec.Status = domain.StatusEnabled
	rec.Header = &v
	p.Logger.Debug("hsts_checked",
		zap.String("url", p.URL),
		zap.Bool("present", true),
		zap.Int("status_code", res.StatusCode),
	)
	return rec
}
