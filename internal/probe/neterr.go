package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os/exec"
	"syscall"
)

// errorClass buckets a probe error for logging:
// "dns_not_found" | "dns_temporary" | "timeout" | "refused" | "reset" | "tls" | "canceled" | "not_installed" | "other".
func errorClass(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "not_installed"
	}

	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsNotFound {
			return "dns_not_found"
		}
		if de.IsTimeout {
			return "timeout"
		}
		return "dns_temporary"
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "refused"
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return "reset"
	}
	if isTLSError(err) {
		return "tls"
	}
	return "other"
}

// isTLSError reports whether err came out of TLS negotiation rather than the
// socket: a received alert, a malformed record, or certificate verification.
func isTLSError(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "remote error" {
		return true
	}
	var (
		rhe tls.RecordHeaderError
		cve *tls.CertificateVerificationError
		uae x509.UnknownAuthorityError
		hne x509.HostnameError
		cie x509.CertificateInvalidError
		ae  tls.AlertError
	)
	return errors.As(err, &rhe) || errors.As(err, &cve) || errors.As(err, &uae) ||
		errors.As(err, &hne) || errors.As(err, &cie) || errors.As(err, &ae)
}

// isTransportFailure reports whether a handshake error was caused by the
// connection itself (timeout, reset, cancellation) instead of negotiation.
func isTransportFailure(err error) bool {
	switch errorClass(err) {
	case "timeout", "canceled", "reset", "refused", "dns_not_found", "dns_temporary":
		return true
	}
	return false
}
