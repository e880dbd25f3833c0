package probe

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

// PingProbe echoes every host once per round, in order, and appends one
// PingRecord per host as soon as that host has been checked.
type PingProbe struct {
	Logger *zap.Logger
	Store  repo.PingWriter
	Echoer Echoer
	Hosts  []string

	now func() time.Time
}

func NewPingProbe(logger *zap.Logger, store repo.PingWriter, echoer Echoer, hosts []string) *PingProbe {
	return &PingProbe{
		Logger: logger,
		Store:  store,
		Echoer: echoer,
		Hosts:  hosts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *PingProbe) Name() string { return "ping" }

func (p *PingProbe) RunOnce(ctx context.Context) {
	for _, host := range p.Hosts {
		if ctx.Err() != nil {
			return
		}
		rec := p.Check(ctx, host)
		if ctx.Err() != nil {
			// the echo was cut short by shutdown; that is not an outage
			return
		}
		if err := p.Store.AppendPing(ctx, &rec); err != nil {
			p.Logger.Warn("ping_append_error", zap.String("host", host), zap.Error(err))
		}
	}
}

// Check echoes host once and classifies the outcome. Status is PingUp iff a
// latency was parsed; the latency is truncated to whole milliseconds.
func (p *PingProbe) Check(ctx context.Context, host string) domain.PingRecord {
	res := p.Echoer.Echo(ctx, host)
	rec := domain.PingRecord{
		Host:      host,
		Status:    domain.PingDown,
		Timestamp: p.now(),
	}

	switch res.Outcome {
	case EchoReachable:
		rec.Status = domain.PingUp
		rec.TimeMS = math.Trunc(res.LatencyMS)
		p.Logger.Debug("ping_checked",
			zap.String("host", host),
			zap.Float64("time_ms", rec.TimeMS),
		)
	case EchoReachableUnparsed:
		p.Logger.Info("ping_unparsed", zap.String("host", host))
	default:
		p.Logger.Info("ping_unreachable",
			zap.String("host", host),
			zap.String("error_class", errorClass(res.Err)),
			zap.Error(res.Err),
		)
	}
	return rec
}
