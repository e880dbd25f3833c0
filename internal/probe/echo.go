package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// EchoOutcome is the typed result of a single ICMP echo.
type EchoOutcome int

const (
	EchoUnreachable EchoOutcome = iota
	EchoReachableUnparsed
	EchoReachable
)

func (o EchoOutcome) String() string {
	switch o {
	case EchoReachable:
		return "reachable"
	case EchoReachableUnparsed:
		return "reachable_unparsed"
	default:
		return "unreachable"
	}
}

type EchoResult struct {
	Outcome   EchoOutcome
	LatencyMS float64 // set only for EchoReachable
	Err       error   // why the host counted as unreachable
}

// Echoer sends one echo request to host.
type Echoer interface {
	Echo(ctx context.Context, host string) EchoResult
}

// Platform describes how the local ping utility is invoked and how its
// round-trip time is printed.
type Platform struct {
	Name    string
	Args    func(host string, timeout time.Duration) []string
	Latency *regexp.Regexp
}

var (
	// Windows prints "time=12ms".
	WindowsPlatform = Platform{
		Name: "windows",
		Args: func(host string, timeout time.Duration) []string {
			return []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), host}
		},
		Latency: regexp.MustCompile(`time=(\d+)ms`),
	}

	// iputils and busybox print "time=12.3 ms"; -W is in seconds.
	LinuxPlatform = Platform{
		Name: "linux",
		Args: func(host string, timeout time.Duration) []string {
			return []string{"-c", "1", "-W", wholeSeconds(timeout), host}
		},
		Latency: regexp.MustCompile(`time=(\d+(?:\.\d+)?) ms`),
	}

	// BSD ping takes the overall timeout with -t.
	DarwinPlatform = Platform{
		Name: "darwin",
		Args: func(host string, timeout time.Duration) []string {
			return []string{"-c", "1", "-t", wholeSeconds(timeout), host}
		},
		Latency: regexp.MustCompile(`time=(\d+(?:\.\d+)?) ms`),
	}
)

// PlatformFor picks the ping dialect for a GOOS value.
func PlatformFor(goos string) Platform {
	switch goos {
	case "windows":
		return WindowsPlatform
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		return DarwinPlatform
	default:
		return LinuxPlatform
	}
}

// ParseLatency extracts the round-trip time in milliseconds from ping output.
func (p Platform) ParseLatency(out []byte) (float64, bool) {
	m := p.Latency.FindSubmatch(out)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func wholeSeconds(d time.Duration) string {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10)
}

// RunFunc runs a command and returns its standard output. A non-zero exit
// must be reported as *exec.ExitError.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CommandEchoer shells out to the platform ping utility.
type CommandEchoer struct {
	Binary   string
	Platform Platform
	Timeout  time.Duration
	Run      RunFunc
}

// NewCommandEchoer selects the platform from runtime.GOOS.
func NewCommandEchoer(timeout time.Duration) *CommandEchoer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CommandEchoer{
		Binary:   "ping",
		Platform: PlatformFor(runtime.GOOS),
		Timeout:  timeout,
		Run:      runCommand,
	}
}

func (e *CommandEchoer) Echo(ctx context.Context, host string) EchoResult {
	// leave the utility room to report its own timeout before we kill it
	cctx, cancel := context.WithTimeout(ctx, e.Timeout+time.Second)
	defer cancel()

	out, err := e.Run(cctx, e.Binary, e.Platform.Args(host, e.Timeout)...)
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return EchoResult{
				Outcome: EchoUnreachable,
				Err:     fmt.Errorf("ping exited with %d: %s", ee.ExitCode(), strings.TrimSpace(string(ee.Stderr))),
			}
		}
		if cctx.Err() != nil {
			err = cctx.Err()
		}
		return EchoResult{Outcome: EchoUnreachable, Err: err}
	}

	lat, ok := e.Platform.ParseLatency(out)
	if !ok {
		return EchoResult{Outcome: EchoReachableUnparsed}
	}
	return EchoResult{Outcome: EchoReachable, LatencyMS: lat}
}
