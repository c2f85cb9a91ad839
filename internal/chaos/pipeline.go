// Package chaos is the Chaos Pipeline (C4): pre-upstream decisions and
// post-upstream effects computed from the rule the matcher selected.
//
// The pre/post split is structural and must never re-match between the two
// calls (spec.md §9: rate-limit and token-bucket are non-idempotent) — the
// forwarder carries the *rules.Rule returned by EvaluatePre into
// EvaluatePost itself.
//
// Grounded on the teacher's internal/chaos/middleware.go (decision made
// once per request, stats-adjacent action emitted alongside) and
// controller.go, generalized from "one global Config" to "the matched
// rule carried through", per spec.md §9.
package chaos

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ratelimit"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/rules"
)

// MaxHangDuration caps the timeout-hang wait regardless of configured
// value, per spec.md §5 ("bound resource retention").
const MaxHangDuration = 5 * time.Minute

// TerminalKind distinguishes the three ways EvaluatePre can end a request.
type TerminalKind int

const (
	// NotTerminal means "proceed to upstream", carrying Rule (possibly
	// nil) forward to EvaluatePost.
	NotTerminal TerminalKind = iota
	TerminalResponse
	TerminalHang
)

// PreDecision is the result of EvaluatePre.
type PreDecision struct {
	Terminal TerminalKind
	Actions  []string

	// Rule is the matched rule (nil if none matched), set regardless of
	// terminal/non-terminal outcome; on the non-terminal path the
	// forwarder carries it forward to EvaluatePost.
	Rule *rules.Rule

	// Populated when Terminal == TerminalResponse.
	StatusCode int
	Body       []byte
	Headers    map[string]string

	// Populated when Terminal == TerminalHang.
	HangDuration time.Duration
}

// PostEffects is the result of EvaluatePost.
type PostEffects struct {
	DelayMs int
	Corrupt bool
}

// errorBody / rateLimitBody are the small JSON envelopes spec.md §4.4
// mandates verbatim.
type errorBody struct {
	Error       bool   `json:"error"`
	Message     string `json:"message"`
	ChaosMonkey bool   `json:"chaosMonkey"`
}

type rateLimitBody struct {
	Error       bool   `json:"error"`
	Message     string `json:"message"`
	RetryAfter  int    `json:"retryAfter,omitempty"`
	ChaosMonkey bool   `json:"chaosMonkey"`
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// errorBody/rateLimitBody are always marshalable; this would be a
		// programming error, not a runtime condition to recover from.
		panic(err)
	}
	return b
}

// EvaluatePre implements spec.md §4.4's pre-upstream decision table.
func EvaluatePre(set []*rules.Rule, registry *ratelimit.Registry, path, method string) PreDecision {
	matched, ok := rules.FindMatchingRule(set, path, method)
	if !ok {
		return PreDecision{Terminal: NotTerminal, Actions: []string{"match:no_rule"}}
	}

	actions := []string{fmt.Sprintf("match:%s", matched.Name)}

	switch matched.ChaosType {
	case rules.RateLimit:
		return evaluateRateLimit(matched, actions)
	case rules.TokenBucket:
		return evaluateTokenBucket(matched, registry, method, actions)
	case rules.Timeout:
		return evaluateTimeout(matched, actions)
	case rules.Error:
		return evaluateError(matched, actions)
	default: // latency, corrupt: not terminal pre-upstream
		return PreDecision{Terminal: NotTerminal, Rule: matched, Actions: actions}
	}
}

func evaluateRateLimit(matched *rules.Rule, actions []string) PreDecision {
	p := rand.Float64() * 100
	if p < float64(matched.RateLimit.FailRate) {
		actions = append(actions, fmt.Sprintf("drop_rate:triggered:%d%%", matched.RateLimit.FailRate))
		return PreDecision{
			Terminal:   TerminalResponse,
			Rule:       matched,
			Actions:    actions,
			StatusCode: 429,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body: mustJSON(errorBody{
				Error:       true,
				Message:     "Too Many Requests (drop rate triggered)",
				ChaosMonkey: true,
			}),
		}
	}
	actions = append(actions, fmt.Sprintf("drop_rate:passed:%d%%", matched.RateLimit.FailRate))
	return PreDecision{Terminal: NotTerminal, Rule: matched, Actions: actions}
}

func evaluateTokenBucket(matched *rules.Rule, registry *ratelimit.Registry, method string, actions []string) PreDecision {
	key := fmt.Sprintf("%s:%s", method, matched.ID)
	d := registry.TryConsume(key, matched.TokenBucket.RPS, matched.TokenBucket.Burst)
	if d.Allowed {
		actions = append(actions, "token_bucket:passed")
		return PreDecision{Terminal: NotTerminal, Rule: matched, Actions: actions}
	}
	actions = append(actions, fmt.Sprintf("token_bucket:blocked(retry_after=%d)", d.RetryAfter))
	return PreDecision{
		Terminal:   TerminalResponse,
		Rule:       matched,
		Actions:    actions,
		StatusCode: 429,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  fmt.Sprintf("%d", d.RetryAfter),
		},
		Body: mustJSON(rateLimitBody{
			Error:       true,
			Message:     "Too Many Requests (rate limited)",
			RetryAfter:  d.RetryAfter,
			ChaosMonkey: true,
		}),
	}
}

func evaluateTimeout(matched *rules.Rule, actions []string) PreDecision {
	jitter := 0
	if matched.Timeout.JitterMs > 0 {
		jitter = rand.Intn(2*matched.Timeout.JitterMs+1) - matched.Timeout.JitterMs
	}
	duration := time.Duration(matched.Timeout.TimeoutMs+jitter) * time.Millisecond
	if duration < 0 {
		duration = 0
	}
	if duration > MaxHangDuration {
		duration = MaxHangDuration
	}
	actions = append(actions, fmt.Sprintf("timeout:triggered(ms=%d)", duration.Milliseconds()))
	return PreDecision{
		Terminal:     TerminalHang,
		Rule:         matched,
		Actions:      actions,
		HangDuration: duration,
	}
}

func evaluateError(matched *rules.Rule, actions []string) PreDecision {
	actions = append(actions, fmt.Sprintf("error:%d", matched.Error.StatusCode))
	return PreDecision{
		Terminal:   TerminalResponse,
		Rule:       matched,
		Actions:    actions,
		StatusCode: matched.Error.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body: mustJSON(errorBody{
			Error:       true,
			Message:     matched.Error.Message,
			ChaosMonkey: true,
		}),
	}
}

// EvaluatePost implements spec.md §4.4's post-upstream effect calculation.
// matched is exactly the *rules.Rule that EvaluatePre returned — never
// re-matched.
func EvaluatePost(matched *rules.Rule) (PostEffects, []string) {
	if matched == nil {
		return PostEffects{}, nil
	}
	switch matched.ChaosType {
	case rules.Latency:
		ms := latencyMs(matched.Latency)
		return PostEffects{DelayMs: ms}, []string{fmt.Sprintf("latency:%dms", ms)}
	case rules.Corrupt:
		return PostEffects{Corrupt: true}, nil
	default:
		return PostEffects{}, nil
	}
}

func latencyMs(p rules.LatencyParams) int {
	if p.FixedMs > 0 {
		return p.FixedMs
	}
	lo, hi := p.MinMs, p.MaxMs
	if hi <= lo {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}
