package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// NewHTTPClient builds the client shared by the HTTP-based probes. The
// transport is built from scratch (not cloned from http.DefaultTransport) so
// HTTP/2 can be registered on it explicitly.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	if _, err := http2.ConfigureTransports(tr); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return &http.Client{Timeout: timeout, Transport: tr}, nil
}

// HTTPChecker issues a GET and treats any transport error or a status >= 400
// as a failure.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(client *http.Client) *HTTPChecker {
	return &HTTPChecker{Client: client}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Success: false, Message: err.Error(), Err: err}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Success: false, Message: err.Error(), LatencyMS: latency, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return CheckResult{
		Success:    resp.StatusCode < http.StatusBadRequest,
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
		Header:     resp.Header,
	}
}
