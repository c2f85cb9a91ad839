package proxy

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// classifyUpstreamError implements spec.md §4.5's classification table,
// mapping a transport-level failure from the upstream call to the
// message/details pair the client sees in the 502 body.
func classifyUpstreamError(host string, err error) (message, details, tag string) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS resolution failed", fmt.Sprintf("Could not resolve hostname: %s", host), "dns"
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return "SSL/TLS certificate error", err.Error(), "tls"
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return "Connection refused by upstream server", fmt.Sprintf("%s is not accepting connections", host), "connection_refused"
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return "Connection reset by upstream server", err.Error(), "connection_reset"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Upstream request timed out", fmt.Sprintf("No response from %s", host), "timeout"
	}

	return "Failed to reach upstream server", err.Error(), "unknown"
}
