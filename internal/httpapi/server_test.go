package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/feed"
	"github.com/hamed0406/securemon/internal/repo/memory"
)

// ---- test helpers ----

const testKey = "k_test"

func setup(t *testing.T) (*httptest.Server, *feed.Store, *feed.Hub) {
	t.Helper()
	hub := feed.NewHub(zap.NewNop())
	store := feed.NewStore(memory.New(), hub)
	srv := NewServer(zap.NewNop(), store, hub)

	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(Options{Keys: []string{testKey}, RPM: 10_000, Burst: 10_000}))
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts, store, hub
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("X-API-Key", testKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// ---- tests ----

func TestHealthzIsOpen(t *testing.T) {
	ts, _, _ := setup(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestReportRequiresKey(t *testing.T) {
	ts, _, _ := setup(t)
	resp, err := http.Get(ts.URL + "/api/report/mtbf")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestPingReport_RangeAndStats(t *testing.T) {
	ts, store, _ := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, ms := range []float64{10, 0, 30} {
		store.AppendPing(ctx, &domain.PingRecord{Host: "h", Status: btoi(ms > 0), TimeMS: ms, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	store.AppendPing(ctx, &domain.PingRecord{Host: "h", Status: 1, TimeMS: 99, Timestamp: base.Add(time.Hour)})

	var body struct {
		Hosts []struct {
			Host      string  `json:"host"`
			Samples   int     `json:"samples"`
			MeanMS    float64 `json:"mean_ms"`
			UptimePct float64 `json:"uptime_pct"`
		} `json:"hosts"`
	}
	url := ts.URL + "/api/report/ping?from=2024-03-01T10:00:00Z&to=2024-03-01T10:30:00Z"
	if code := get(t, url, &body); code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}
	if len(body.Hosts) != 1 || body.Hosts[0].Samples != 3 || body.Hosts[0].MeanMS != 40.0/3 {
		t.Fatalf("unexpected ping body: %+v", body)
	}

	if code := get(t, ts.URL+"/api/report/ping?from=yesterday", nil); code != http.StatusBadRequest {
		t.Fatalf("want 400 on bad from, got %d", code)
	}
	if code := get(t, ts.URL+"/api/report/ping?from=2024-03-02T00:00:00Z&to=2024-03-01T00:00:00Z", nil); code != http.StatusBadRequest {
		t.Fatalf("want 400 on inverted range, got %d", code)
	}
}

func TestStatusReports(t *testing.T) {
	ts, store, _ := setup(t)
	ctx := context.Background()
	store.AppendHSTS(ctx, &domain.HSTSRecord{URL: "https://a", Status: domain.StatusEnabled, Header: domain.StringPtr("max-age=1")})
	store.AppendHSTS(ctx, &domain.HSTSRecord{URL: "https://a", Status: domain.StatusDisabled})
	store.AppendForwardSecrecy(ctx, &domain.ForwardSecrecyRecord{Hostname: "a", Status: domain.StatusError, ErrorMessage: domain.StringPtr("dial")})

	var hsts struct {
		URLs []struct {
			Key        string  `json:"key"`
			EnabledPct float64 `json:"enabled_pct"`
		} `json:"urls"`
	}
	if code := get(t, ts.URL+"/api/report/hsts", &hsts); code != 200 {
		t.Fatalf("hsts: %d", code)
	}
	if len(hsts.URLs) != 1 || hsts.URLs[0].EnabledPct != 50 {
		t.Fatalf("unexpected hsts: %+v", hsts)
	}

	var fs struct {
		Hostnames []struct {
			ErrorPct float64 `json:"error_pct"`
		} `json:"hostnames"`
	}
	if code := get(t, ts.URL+"/api/report/forward-secrecy", &fs); code != 200 {
		t.Fatalf("fs: %d", code)
	}
	if len(fs.Hostnames) != 1 || fs.Hostnames[0].ErrorPct != 100 {
		t.Fatalf("unexpected fs: %+v", fs)
	}

	var mtbf map[string][]any
	if code := get(t, ts.URL+"/api/report/mtbf", &mtbf); code != 200 {
		t.Fatalf("mtbf: %d", code)
	}
	if urls, ok := mtbf["urls"]; !ok || urls == nil || len(urls) != 0 {
		t.Fatalf("want empty list, got %v", mtbf)
	}
}

func TestLiveStreamsAppendedRecords(t *testing.T) {
	ts, store, hub := setup(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live?api_key=" + testKey
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := store.AppendMTBF(context.Background(), &domain.MTBFRecord{URL: "https://a", MTBF: 4, Failures: 2}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Kind   string            `json:"kind"`
		Record domain.MTBFRecord `json:"record"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Kind != feed.KindMTBF || ev.Record.Failures != 2 || ev.Record.ID != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
