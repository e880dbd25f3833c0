package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo/memory"
)

func TestHSTSProbe_HeaderPresent(t *testing.T) {
	const v = "max-age=31536000; includeSubDomains"
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", v)
	}))
	defer s.Close()

	st := memory.New()
	p := NewHSTSProbe(zap.NewNop(), st, NewHTTPChecker(newTestClient(t, 2*time.Second)), s.URL)
	p.RunOnce(context.Background())

	rows, _ := st.HSTSResults(context.Background())
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Status != domain.StatusEnabled || r.Header == nil || *r.Header != v {
		t.Fatalf("want enabled with header %q, got %+v", v, r)
	}
	if r.URL != s.URL || r.Timestamp.IsZero() {
		t.Fatalf("bad url/timestamp: %+v", r)
	}
}

func TestHSTSProbe_HeaderAbsent(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer s.Close()

	p := NewHSTSProbe(zap.NewNop(), memory.New(), NewHTTPChecker(newTestClient(t, 2*time.Second)), s.URL)
	r := p.Check(context.Background())
	if r.Status != domain.StatusDisabled || r.Header != nil {
		t.Fatalf("want disabled with null header, got %+v", r)
	}
}

func TestHSTSProbe_FollowsRedirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=60")
	}))
	defer final.Close()
	hop := httptest.NewServer(http.RedirectHandler(final.URL, http.StatusMovedPermanently))
	defer hop.Close()

	p := NewHSTSProbe(zap.NewNop(), memory.New(), NewHTTPChecker(newTestClient(t, 2*time.Second)), hop.URL)
	r := p.Check(context.Background())
	if r.Status != domain.StatusEnabled {
		t.Fatalf("want header from redirect target, got %+v", r)
	}
}

func TestHSTSProbe_ServerErrorStillInspected(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=1")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	p := NewHSTSProbe(zap.NewNop(), memory.New(), NewHTTPChecker(newTestClient(t, 2*time.Second)), s.URL)
	if r := p.Check(context.Background()); r.Status != domain.StatusEnabled {
		t.Fatalf("want enabled on 500 with header, got %+v", r)
	}
}

func TestHSTSProbe_TimeoutIsError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer s.Close()

	st := memory.New()
	p := NewHSTSProbe(zap.NewNop(), st, NewHTTPChecker(newTestClient(t, 50*time.Millisecond)), s.URL)
	p.RunOnce(context.Background())

	rows, _ := st.HSTSResults(context.Background())
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	if rows[0].Status != domain.StatusError || rows[0].Header == nil || *rows[0].Header == "" {
		t.Fatalf("want error status with error text, got %+v", rows[0])
	}
}

func TestHSTSProbe_CancelledNotPersisted(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := memory.New()
	NewHSTSProbe(zap.NewNop(), st, NewHTTPChecker(newTestClient(t, time.Second)), s.URL).RunOnce(ctx)
	if _, n, _, _ := st.Counts(); n != 0 {
		t.Fatalf("want nothing persisted after cancel, got %d", n)
	}
}
