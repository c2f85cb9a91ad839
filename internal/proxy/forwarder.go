// Package proxy is the Proxy Forwarder (C5): request ingress, the chaos
// pipeline gate, the upstream call, post-effects, and response egress —
// spec.md §4.5.
//
// Grounded on the teacher's internal/proxy/reverse_proxy.go and router.go
// for the overall "build a handler around a target" shape, generalized
// from httputil.ReverseProxy (which exposes no hook point to interpose
// chaos stages between request receipt and the upstream call, nor to
// hijack the connection for the hang case) to a hand-rolled forwarder.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/chaos"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/engine"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ratelimit"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/reqid"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/rules"
)

// maxBufferedBody caps how much of the inbound request body this
// forwarder will hold in memory — spec.md §4.5 "up to implementation-
// defined cap".
const maxBufferedBody = 10 << 20 // 10MiB

// Forwarder is the proxy-path HTTP handler mounted at /proxy/*.
type Forwarder struct {
	Engine   *engine.Engine
	Registry *ratelimit.Registry
	Client   *http.Client
}

// New constructs a Forwarder with a zero-timeout http.Client: spec.md §5
// is explicit that outbound upstream requests carry no engine-imposed
// timeout of their own — an upstream call runs until it completes or the
// inbound request's context is cancelled.
func New(eng *engine.Engine, registry *ratelimit.Registry) *Forwarder {
	return &Forwarder{
		Engine:   eng,
		Registry: registry,
		Client:   &http.Client{},
	}
}

// ServeHTTP implements the pipeline in spec.md §4.5: ingress, config
// precondition, the chaos gate (pre-decision), the upstream call, post
// effects, and egress.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := reqid.FromContext(r.Context())
	path := strings.TrimPrefix(r.URL.Path, "/proxy")
	if path == "" {
		path = "/"
	}
	headers := snapshotHeaders(r.Header)

	body, err := readLimitedBody(r.Body, maxBufferedBody)
	if err != nil {
		f.respondError(w, id, r, path, start, headers, 400, "Failed to read request body", "", nil)
		return
	}

	cfg := f.Engine.GetConfig()
	if cfg.TargetURL == "" {
		f.respondError(w, id, r, path, start, headers, 503, "No target URL configured",
			"Set a target URL via the management interface before using the proxy.", nil)
		return
	}

	targetURL, err := buildTargetURL(cfg.TargetURL, path, r.URL.RawQuery)
	if err != nil {
		f.respondError(w, id, r, path, start, headers, 502, "Invalid target URL", err.Error(), nil)
		return
	}

	var actions []string
	var matched *rules.Rule

	if cfg.Enabled {
		d := chaos.EvaluatePre(f.Engine.ListRules(), f.Registry, path, r.Method)
		actions = d.Actions
		matched = d.Rule

		switch d.Terminal {
		case chaos.TerminalResponse:
			f.writeTerminalResponse(w, id, r, path, start, headers, d, matched)
			return
		case chaos.TerminalHang:
			f.writeTerminalHang(id, r, path, start, headers, d, matched, w)
			return
		}
	} else {
		actions = append(actions, "chaos:disabled")
	}

	f.forwardToUpstream(w, r, id, path, start, headers, body, targetURL, actions, matched)
}

func snapshotHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	lr := io.LimitReader(r, limit+1)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("request body exceeds %d bytes", limit)
	}
	return b, nil
}

// buildTargetURL joins the inbound path to targetURL as a relative
// reference, then overwrites the query with rawQuery verbatim — spec.md
// §4.5 "Target URL construction".
func buildTargetURL(target, path, rawQuery string) (*url.URL, error) {
	base, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	resolved := base.ResolveReference(ref)
	resolved.RawQuery = rawQuery
	return resolved, nil
}

func (f *Forwarder) writeTerminalResponse(w http.ResponseWriter, id uuid.UUID, r *http.Request, path string, start time.Time, headers map[string]string, d chaos.PreDecision, matched *rules.Rule) {
	for k, v := range d.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(d.StatusCode)
	_, _ = w.Write(d.Body)

	f.logOutcome(id, r, path, start, headers, true, matched, d.StatusCode, d.Actions, "")
}

// writeTerminalHang stamps and broadcasts the log entry immediately, so
// observers see the event at the moment it is decided rather than at
// teardown, then arms the hijack-and-reset independently of logging.
func (f *Forwarder) writeTerminalHang(id uuid.UUID, r *http.Request, path string, start time.Time, headers map[string]string, d chaos.PreDecision, matched *rules.Rule, w http.ResponseWriter) {
	f.logOutcome(id, r, path, start, headers, true, matched, engine.StatusTimeout, d.Actions, "")
	hangAndReset(w, d.HangDuration)
}

func (f *Forwarder) respondError(w http.ResponseWriter, id uuid.UUID, r *http.Request, path string, start time.Time, headers map[string]string, status int, message, details string, actions []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": true, "message": message}
	if details != "" {
		body["details"] = details
	}
	b, _ := json.Marshal(body)
	_, _ = w.Write(b)

	f.logOutcome(id, r, path, start, headers, false, nil, status, actions, message)
}

func (f *Forwarder) logOutcome(id uuid.UUID, r *http.Request, path string, start time.Time, headers map[string]string, chaosApplied bool, matched *rules.Rule, status any, actions []string, errMessage string) {
	entry := engine.LogEntry{
		ID:             id.String(),
		Timestamp:      start.UTC().Format(time.RFC3339Nano),
		Method:         r.Method,
		Path:           path,
		Headers:        headers,
		StatusCode:     status,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		ChaosApplied:   chaosApplied,
		ActionsApplied: actions,
	}
	if matched != nil {
		entry.ChaosType = string(matched.ChaosType)
		entry.ChaosRuleID = matched.ID.String()
		entry.ChaosRuleName = matched.Name
	}
	entry.ChaosDetails = chaosDetails(actions, errMessage)
	f.Engine.AppendLog(entry)
}

// chaosDetails implements spec.md §4.5's "Log actions pattern": normal
// completions join actionsApplied with " → ", excluding upstream:*
// entries; upstream/ingress errors use "Proxy error: <message>" instead.
func chaosDetails(actions []string, errMessage string) string {
	if errMessage != "" {
		return "Proxy error: " + errMessage
	}
	filtered := make([]string, 0, len(actions))
	for _, a := range actions {
		if strings.HasPrefix(a, "upstream:") {
			continue
		}
		filtered = append(filtered, a)
	}
	return strings.Join(filtered, " → ")
}

// forwardToUpstream issues the outbound call, classifies transport
// failures, applies post-upstream effects to a successful response, and
// writes the result back to the client.
func (f *Forwarder) forwardToUpstream(w http.ResponseWriter, r *http.Request, id uuid.UUID, path string, start time.Time, headers map[string]string, body []byte, targetURL *url.URL, actions []string, matched *rules.Rule) {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL.String(), reqBody)
	if err != nil {
		f.respondError(w, id, r, path, start, headers, 502, "Failed to construct upstream request", err.Error(), actions)
		return
	}
	upstreamReq.Header = filterRequestHeaders(r.Header)
	upstreamReq.Host = targetURL.Host

	actions = append(actions, "upstream:request")

	resp, err := f.Client.Do(upstreamReq)
	if err != nil {
		message, details, tag := classifyUpstreamError(targetURL.Host, err)
		actions = append(actions, fmt.Sprintf("upstream:error:%s", tag))
		f.respondError(w, id, r, path, start, headers, 502, message, details, actions)
		return
	}
	defer resp.Body.Close()

	actions = append(actions, fmt.Sprintf("upstream:%d", resp.StatusCode))

	effects, postActions := chaos.EvaluatePost(matched)
	actions = append(actions, postActions...)

	streaming := matched != nil && matched.Latency.Streaming
	if effects.DelayMs > 0 && !streaming {
		select {
		case <-time.After(time.Duration(effects.DelayMs) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
	}

	if effects.Corrupt && isJSONContentType(resp.Header.Get("Content-Type")) {
		f.writeCorrupted(w, resp, id, r, path, start, headers, matched, actions)
		return
	}

	filterResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	var src io.Reader = resp.Body
	if effects.DelayMs > 0 && streaming {
		src = chaos.NewThrottledReader(r.Context(), resp.Body, time.Duration(effects.DelayMs)*time.Millisecond)
	}
	_, _ = io.Copy(w, src)

	f.logOutcome(id, r, path, start, headers, true, matched, resp.StatusCode, actions, "")
}

func (f *Forwarder) writeCorrupted(w http.ResponseWriter, resp *http.Response, id uuid.UUID, r *http.Request, path string, start time.Time, headers map[string]string, matched *rules.Rule, actions []string) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		f.respondError(w, id, r, path, start, headers, 502, "Failed to read upstream response body", err.Error(), actions)
		return
	}
	corrupted, action := chaos.CorruptJSONBody(raw)
	actions = append(actions, action)

	filterResponseHeaders(w, resp.Header)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(corrupted)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(corrupted)

	f.logOutcome(id, r, path, start, headers, true, matched, resp.StatusCode, actions, "")
}

func isJSONContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
