package scheduler

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/probe"
	"github.com/hamed0406/securemon/internal/repo/memory"
	"github.com/hamed0406/securemon/internal/repo/sqlite"
)

type stubEchoer struct{}

func (stubEchoer) Echo(ctx context.Context, host string) probe.EchoResult {
	if host == "down.test" {
		return probe.EchoResult{Outcome: probe.EchoUnreachable, Err: errors.New("exit status 1")}
	}
	return probe.EchoResult{Outcome: probe.EchoReachable, LatencyMS: 4.2}
}

func TestOrchestrator_RoundsAcrossAllProbes(t *testing.T) {
	const rounds = 3
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	st, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "mon.db"), log)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	defer st.Close()

	web := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=600")
	}))
	defer web.Close()

	pool := x509.NewCertPool()
	pool.AddCert(web.Certificate())
	host, port, _ := net.SplitHostPort(web.Listener.Addr().String())
	portN, _ := strconv.Atoi(port)

	checker := probe.NewHTTPChecker(web.Client())
	hosts := []string{"up.test", "down.test"}

	fs := probe.NewForwardSecrecyProbe(log, st, host, portN, time.Second)
	fs.RootCAs = pool

	o := NewOrchestrator(log, st, rounds,
		Job{Probe: probe.NewPingProbe(log, st, stubEchoer{}, hosts), Delay: time.Millisecond},
		Job{Probe: probe.NewHSTSProbe(log, st, checker, web.URL), Delay: time.Millisecond},
		Job{Probe: fs, Delay: time.Millisecond},
		Job{Probe: probe.NewMTBFSampler(log, st, checker, web.URL, 20*time.Millisecond, 5*time.Millisecond), Delay: time.Millisecond},
	)
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pings, err := st.PingBetween(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(pings) != rounds*len(hosts) {
		t.Fatalf("want %d ping rows, got %d", rounds*len(hosts), len(pings))
	}
	for _, p := range pings {
		if (p.Status == domain.PingUp) != (p.TimeMS > 0) {
			t.Fatalf("status/time mismatch: %+v", p)
		}
	}

	hs, _ := st.HSTSResults(ctx)
	fsr, _ := st.ForwardSecrecyResults(ctx)
	mt, _ := st.MTBFResults(ctx)
	if len(hs) != rounds || len(fsr) != rounds || len(mt) != rounds {
		t.Fatalf("want %d rows each, got hsts=%d fs=%d mtbf=%d", rounds, len(hs), len(fsr), len(mt))
	}
	for _, r := range fsr {
		if r.Status != domain.StatusEnabled {
			t.Fatalf("want forward secrecy enabled, got %+v", r)
		}
	}
	for _, r := range hs {
		if r.Status != domain.StatusEnabled {
			t.Fatalf("want hsts enabled, got %+v", r)
		}
	}
}

func TestOrchestrator_CancelJoinsAllLoops(t *testing.T) {
	st := memory.New()
	a := &countingProbe{name: "a"}
	b := &countingProbe{name: "b"}
	o := NewOrchestrator(zap.NewNop(), st, 0,
		Job{Probe: a, Delay: time.Hour},
		Job{Probe: b, Delay: time.Hour},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not return after cancel")
	}
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("want one iteration each, got a=%d b=%d", a.count(), b.count())
	}
}

type brokenSchema struct{ *memory.Store }

func (brokenSchema) EnsureSchema(ctx context.Context) error { return errors.New("read-only file system") }

func TestOrchestrator_SchemaFailureStartsNothing(t *testing.T) {
	p := &countingProbe{name: "p"}
	o := NewOrchestrator(zap.NewNop(), brokenSchema{memory.New()}, 1, Job{Probe: p})
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("want schema error")
	}
	if p.count() != 0 {
		t.Fatalf("probe ran despite schema failure")
	}
}
