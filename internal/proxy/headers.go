package proxy

import (
	"net/http"
	"strings"
)

// hopByHop lists the headers an intermediary must never forward, per
// RFC 7230 §6.1, plus host/content-length which this forwarder recomputes
// itself — spec.md §4.5 "Request header hygiene".
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
	"content-length":      true,
}

// responseHopByHop is the smaller set stripped from the upstream response
// before copying it to the client, per spec.md §4.5 "Response egress".
var responseHopByHop = map[string]bool{
	"transfer-encoding": true,
	"connection":        true,
	"keep-alive":        true,
}

// filterRequestHeaders drops hop-by-hop headers and every header named in
// the inbound Connection token list, joining multi-value headers with
// ", " as it goes.
func filterRequestHeaders(in http.Header) http.Header {
	drop := map[string]bool{}
	for k, v := range hopByHop {
		drop[k] = v
	}
	for _, token := range connectionTokens(in.Get("Connection")) {
		drop[strings.ToLower(token)] = true
	}

	out := make(http.Header, len(in))
	for k, vals := range in {
		if drop[strings.ToLower(k)] {
			continue
		}
		out.Set(k, strings.Join(vals, ", "))
	}
	return out
}

func connectionTokens(connHeader string) []string {
	if connHeader == "" {
		return nil
	}
	parts := strings.Split(connHeader, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// filterResponseHeaders copies every upstream response header except the
// response hop-by-hop set into dst.
func filterResponseHeaders(dst http.ResponseWriter, src http.Header) {
	for k, vals := range src {
		if responseHopByHop[strings.ToLower(k)] {
			continue
		}
		for _, v := range vals {
			dst.Header().Add(k, v)
		}
	}
}
