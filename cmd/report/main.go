// Command report prints summary tables from the monitoring database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/config"
	"github.com/hamed0406/securemon/internal/repo/backend"
	"github.com/hamed0406/securemon/internal/report"
)

func main() {
	var (
		fromS  = flag.String("from", "", "start of ping range (RFC3339 or YYYY-MM-DD); default 24h ago")
		toS    = flag.String("to", "", "end of ping range (RFC3339 or YYYY-MM-DD); default now")
		asJSON = flag.Bool("json", false, "print JSON instead of tables")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	now := time.Now().UTC()
	from, err := parseTime(*fromS, now.Add(-24*time.Hour))
	if err != nil {
		log.Fatalf("-from: %v", err)
	}
	to, err := parseTime(*toS, now)
	if err != nil {
		log.Fatalf("-to: %v", err)
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg.DatabaseURL, cfg.DBPath, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	sum, err := report.Build(ctx, store, from, to)
	if err != nil {
		log.Fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
		return
	}
	printSummary(os.Stdout, sum)
}

func parseTime(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC3339 or YYYY-MM-DD, got %q", v)
	}
	return t, nil
}

func printSummary(out io.Writer, s *report.Summary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "PING %s .. %s\n", s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
	fmt.Fprintln(tw, "HOST\tSAMPLES\tMIN ms\tMAX ms\tMEAN ms\tUPTIME %")
	for _, p := range s.Ping {
		fmt.Fprintf(tw, "%s\t%d\t%.0f\t%.0f\t%.1f\t%.1f\n", p.Host, p.Samples, p.MinMS, p.MaxMS, p.MeanMS, p.UptimePct)
	}

	fmt.Fprintln(tw, "\nHSTS")
	printShares(tw, "URL", s.HSTS)

	fmt.Fprintln(tw, "\nFORWARD SECRECY")
	printShares(tw, "HOSTNAME", s.ForwardSecrecy)

	fmt.Fprintln(tw, "\nMTBF")
	fmt.Fprintln(tw, "URL\tWINDOWS\tFAILURES\tMEAN MTBF s")
	for _, m := range s.MTBF {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", m.URL, m.Windows, m.TotalFailures, m.MeanMTBF)
	}
}

func printShares(tw io.Writer, key string, rows []report.StatusShare) {
	fmt.Fprintf(tw, "%s\tTOTAL\tENABLED %%\tDISABLED %%\tERROR %%\n", key)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.1f\n", r.Key, r.Total, r.EnabledPct, r.DisabledPct, r.ErrorPct)
	}
}
