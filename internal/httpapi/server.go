package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/feed"
	apimw "github.com/hamed0406/securemon/internal/httpapi/middleware"
	"github.com/hamed0406/securemon/internal/report"
	"github.com/hamed0406/securemon/internal/repo"
)

const (
	defaultPingRange = 24 * time.Hour
	liveWriteTimeout = 5 * time.Second
	livePingInterval = 30 * time.Second
	liveBuffer       = 64
)

// Server exposes the stored records read-only. Nothing here writes to the store.
type Server struct {
	Logger  *zap.Logger
	Reports repo.ReportStore
	Hub     *feed.Hub // nil disables /api/live

	now func() time.Time
}

func NewServer(l *zap.Logger, rs repo.ReportStore, hub *feed.Hub) *Server {
	return &Server{Logger: l, Reports: rs, Hub: hub, now: time.Now}
}

type Options struct {
	Keys  []string
	RPM   int
	Burst int
}

func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(opts.RPM, opts.Burst))
		r.Use(apimw.RequireKey(opts.Keys))

		r.Get("/report/ping", s.handlePing)
		r.Get("/report/hsts", s.handleHSTS)
		r.Get("/report/forward-secrecy", s.handleForwardSecrecy)
		r.Get("/report/mtbf", s.handleMTBF)
		if s.Hub != nil {
			r.Get("/live", s.handleLive)
		}
	})

	return r
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r, s.now().UTC())
	if !ok {
		return
	}
	rows, err := s.Reports.PingBetween(r.Context(), from, to)
	if err != nil {
		s.storeError(w, "ping", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":  from,
		"to":    to,
		"hosts": nonNil(report.PingStats(rows)),
	})
}

func (s *Server) handleHSTS(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Reports.HSTSResults(r.Context())
	if err != nil {
		s.storeError(w, "hsts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": nonNil(report.HSTSDistribution(rows))})
}

func (s *Server) handleForwardSecrecy(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Reports.ForwardSecrecyResults(r.Context())
	if err != nil {
		s.storeError(w, "forward_secrecy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hostnames": nonNil(report.ForwardSecrecyDistribution(rows))})
}

func (s *Server) handleMTBF(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Reports.MTBFResults(r.Context())
	if err != nil {
		s.storeError(w, "mtbf", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": nonNil(report.MTBFSummary(rows))})
}

// parseRange reads RFC3339 from/to query values; the default is the last 24h.
func parseRange(w http.ResponseWriter, r *http.Request, now time.Time) (time.Time, time.Time, bool) {
	from, to := now.Add(-defaultPingRange), now
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + p.name + ": want RFC3339"})
			return time.Time{}, time.Time{}, false
		}
		*p.dst = t.UTC()
	}
	if to.Before(from) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to is before from"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (s *Server) storeError(w http.ResponseWriter, kind string, err error) {
	s.Logger.Warn("report_query_error", zap.String("kind", kind), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
}

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

// handleLive streams every appended record as a JSON message until the
// client goes away or the hub is closed.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.Hub.Subscribe(liveBuffer)
	defer cancel()
	s.Logger.Debug("live_subscribed", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(liveWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// nonNil keeps empty tables encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
