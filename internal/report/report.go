// Package report derives summary statistics from stored records. It never
// writes to the store.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

type PingStat struct {
	Host      string  `json:"host"`
	Samples   int     `json:"samples"`
	MinMS     float64 `json:"min_ms"`
	MaxMS     float64 `json:"max_ms"`
	MeanMS    float64 `json:"mean_ms"`
	UptimePct float64 `json:"uptime_pct"`
}

// PingStats groups rows by host in first-seen order. Latency figures cover
// every row, including failed ones at 0 ms; uptime is the share of rows with
// a positive latency.
func PingStats(rows []domain.PingRecord) []PingStat {
	idx := map[string]int{}
	var out []PingStat
	sums := []float64{}
	up := []int{}

	for _, r := range rows {
		i, ok := idx[r.Host]
		if !ok {
			i = len(out)
			idx[r.Host] = i
			out = append(out, PingStat{Host: r.Host, MinMS: r.TimeMS, MaxMS: r.TimeMS})
			sums = append(sums, 0)
			up = append(up, 0)
		}
		s := &out[i]
		s.Samples++
		sums[i] += r.TimeMS
		if r.TimeMS < s.MinMS {
			s.MinMS = r.TimeMS
		}
		if r.TimeMS > s.MaxMS {
			s.MaxMS = r.TimeMS
		}
		if r.TimeMS > 0 {
			up[i]++
		}
	}
	for i := range out {
		out[i].MeanMS = sums[i] / float64(out[i].Samples)
		out[i].UptimePct = 100 * float64(up[i]) / float64(out[i].Samples)
	}
	return out
}

type StatusShare struct {
	Key         string  `json:"key"`
	Total       int     `json:"total"`
	EnabledPct  float64 `json:"enabled_pct"`
	DisabledPct float64 `json:"disabled_pct"`
	ErrorPct    float64 `json:"error_pct"`
}

// StatusDistribution computes the share of each status per key, keys in
// first-seen order. Unknown status values count toward Total only.
func StatusDistribution(keys []string, statuses []domain.Status) []StatusShare {
	idx := map[string]int{}
	var out []StatusShare
	counts := [][3]int{}

	for i, k := range keys {
		j, ok := idx[k]
		if !ok {
			j = len(out)
			idx[k] = j
			out = append(out, StatusShare{Key: k})
			counts = append(counts, [3]int{})
		}
		out[j].Total++
		switch statuses[i] {
		case domain.StatusEnabled:
			counts[j][0]++
		case domain.StatusDisabled:
			counts[j][1]++
		case domain.StatusError:
			counts[j][2]++
		}
	}
	for j := range out {
		n := float64(out[j].Total)
		out[j].EnabledPct = 100 * float64(counts[j][0]) / n
		out[j].DisabledPct = 100 * float64(counts[j][1]) / n
		out[j].ErrorPct = 100 * float64(counts[j][2]) / n
	}
	return out
}

func HSTSDistribution(rows []domain.HSTSRecord) []StatusShare {
	keys := make([]string, len(rows))
	st := make([]domain.Status, len(rows))
	for i, r := range rows {
		keys[i], st[i] = r.URL, r.Status
	}
	return StatusDistribution(keys, st)
}

func ForwardSecrecyDistribution(rows []domain.ForwardSecrecyRecord) []StatusShare {
	keys := make([]string, len(rows))
	st := make([]domain.Status, len(rows))
	for i, r := range rows {
		keys[i], st[i] = r.Hostname, r.Status
	}
	return StatusDistribution(keys, st)
}

// MTBFStat summarises the windows recorded for one URL. MeanMTBF averages
// only windows with at least two failures and is 0 if there are none.
type MTBFStat struct {
	URL           string  `json:"url"`
	Windows       int     `json:"windows"`
	TotalFailures int     `json:"total_failures"`
	MeanMTBF      float64 `json:"mean_mtbf_s"`
}

func MTBFSummary(rows []domain.MTBFRecord) []MTBFStat {
	idx := map[string]int{}
	var out []MTBFStat
	sums := []float64{}
	defined := []int{}

	for _, r := range rows {
		i, ok := idx[r.URL]
		if !ok {
			i = len(out)
			idx[r.URL] = i
			out = append(out, MTBFStat{URL: r.URL})
			sums = append(sums, 0)
			defined = append(defined, 0)
		}
		out[i].Windows++
		out[i].TotalFailures += r.Failures
		if r.Failures >= 2 {
			sums[i] += r.MTBF
			defined[i]++
		}
	}
	for i := range out {
		if defined[i] > 0 {
			out[i].MeanMTBF = sums[i] / float64(defined[i])
		}
	}
	return out
}

// Summary is every table at once, as served by the CLI.
type Summary struct {
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	Ping           []PingStat    `json:"ping"`
	HSTS           []StatusShare `json:"hsts"`
	ForwardSecrecy []StatusShare `json:"forward_secrecy"`
	MTBF           []MTBFStat    `json:"mtbf"`
}

// Build loads rows from rs and computes every table. Ping rows are limited
// to [from, to]; the other kinds are summarised over all rows.
func Build(ctx context.Context, rs repo.ReportStore, from, to time.Time) (*Summary, error) {
	pings, err := rs.PingBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load ping rows: %w", err)
	}
	hsts, err := rs.HSTSResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hsts rows: %w", err)
	}
	fs, err := rs.ForwardSecrecyResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forward secrecy rows: %w", err)
	}
	mtbf, err := rs.MTBFResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mtbf rows: %w", err)
	}
	return &Summary{
		From:           from,
		To:             to,
		Ping:           PingStats(pings),
		HSTS:           HSTSDistribution(hsts),
		ForwardSecrecy: ForwardSecrecyDistribution(fs),
		MTBF:           MTBFSummary(mtbf),
	}, nil
}
