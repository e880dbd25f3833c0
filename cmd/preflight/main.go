// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/multierr"

	"github.com/hamed0406/securemon/internal/config"
	"github.com/hamed0406/securemon/internal/repo/backend"
)

func main() {
	file := flag.String("config", "", "check only this YAML file (ignores environment)")
	flag.Parse()

	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	var (
		cfg config.Config
		err error
	)
	if *file != "" {
		cfg, err = config.LoadFile(*file)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
	} else {
		ok(fmt.Sprintf("config valid: url=%s hostname=%s:%d hosts=%v", cfg.URL, cfg.Hostname, cfg.TLSPort, cfg.PingHosts))
	}

	if p, err := exec.LookPath("ping"); err != nil {
		fail("ping utility not found in PATH; every ping record will be status 0")
	} else {
		ok("ping utility: " + p)
	}

	switch {
	case cfg.DatabaseURL != "":
		ok("store: postgres (DATABASE_URL)")
	case cfg.DBPath == backend.MemoryPath:
		warn("store: in-memory; records are lost on exit")
	default:
		ok("store: sqlite at " + cfg.DBPath)
	}

	if cfg.APIAddr == "" {
		ok("read API disabled (API_ADDR empty)")
	} else if len(cfg.APIKeys) == 0 {
		warn("API_ADDR set but API_KEYS empty; the read API is open to anyone who can reach " + cfg.APIAddr)
	} else {
		ok("read API on " + cfg.APIAddr)
	}

	if !cfg.AllowTLS13 {
		warn("FS_ALLOW_TLS13=false; TLS 1.3-only servers are recorded as not forward-secret")
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
