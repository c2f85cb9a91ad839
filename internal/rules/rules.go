// Package rules holds the chaos rule data model and the first-match lookup
// (C2, Rule Matcher) used by the pipeline to decide what, if anything,
// applies to an inbound request.
package rules

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ChaosType identifies which variant parameters a Rule carries.
type ChaosType string

const (
	Latency     ChaosType = "latency"
	Error       ChaosType = "error"
	Timeout     ChaosType = "timeout"
	Corrupt     ChaosType = "corrupt"
	RateLimit   ChaosType = "rate-limit"
	TokenBucket ChaosType = "token-bucket"
)

// Wildcard admits any HTTP method within a Rule's Methods set.
const Wildcard = "*"

// LatencyParams configures the latency chaos type. If FixedMs is non-zero
// it wins; otherwise a uniform delay in [MinMs, MaxMs] is used.
type LatencyParams struct {
	FixedMs int `json:"latencyMs,omitempty"`
	MinMs   int `json:"latencyMinMs,omitempty"`
	MaxMs   int `json:"latencyMaxMs,omitempty"`
	// Streaming is an ambient, opt-in extension: when true the delay is
	// applied after the response head is written, before the first read of
	// the response body, instead of being slept before the head. Defaults
	// to false (spec.md behavior).
	Streaming bool `json:"streamingLatency,omitempty"`
}

// ErrorParams configures the error chaos type.
type ErrorParams struct {
	StatusCode int    `json:"errorStatusCode,omitempty"`
	Message    string `json:"errorMessage,omitempty"`
}

// TimeoutParams configures the timeout chaos type.
type TimeoutParams struct {
	TimeoutMs int `json:"timeoutMs,omitempty"`
	JitterMs  int `json:"jitterMs,omitempty"`
}

// RateLimitParams configures the probabilistic drop-rate chaos type.
type RateLimitParams struct {
	FailRate int `json:"failRate,omitempty"`
}

// TokenBucketParams configures the true rate-limiting chaos type.
type TokenBucketParams struct {
	RPS   float64 `json:"rps,omitempty"`
	Burst float64 `json:"burst,omitempty"`
}

// Rule is an opaque-id'd chaos declaration. Parameters are carried as a
// tagged variant selected by ChaosType rather than a flat struct of
// optional fields, per the spec's explicit "polymorphic chaos" design note
// — this removes the "field present for the wrong type" bug class at
// compile time for anything that switches on ChaosType.
type Rule struct {
	ID          uuid.UUID
	Name        string
	Enabled     bool
	PathPattern string
	Methods     []string
	ChaosType   ChaosType

	Latency     LatencyParams
	Error       ErrorParams
	Timeout     TimeoutParams
	RateLimit   RateLimitParams
	TokenBucket TokenBucketParams

	// re (nil if PathPattern failed to compile) and literal (true in that
	// case) are computed once, at creation/update time, so the matcher
	// never recompiles a pattern per-request.
	re      *regexp.Regexp
	literal bool
}

// New applies defaults and compiles PathPattern. id is generated if zero.
func New(id uuid.UUID, name, pathPattern string, methods []string, chaosType ChaosType) *Rule {
	if id == uuid.Nil {
		id = uuid.New()
	}
	r := &Rule{
		ID:          id,
		Name:        name,
		Enabled:     true,
		PathPattern: pathPattern,
		Methods:     normalizeMethods(methods),
		ChaosType:   chaosType,
	}
	r.applyDefaults()
	r.compile()
	return r
}

func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		return []string{Wildcard}
	}
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	return out
}

// applyDefaults fills in the per-chaosType defaults from spec.md §3.
func (r *Rule) applyDefaults() {
	switch r.ChaosType {
	case Latency:
		if r.Latency.FixedMs == 0 && r.Latency.MinMs == 0 && r.Latency.MaxMs == 0 {
			r.Latency.MinMs, r.Latency.MaxMs = 100, 1000
		}
	case Error:
		if r.Error.StatusCode == 0 {
			r.Error.StatusCode = 500
		}
		if r.Error.Message == "" {
			r.Error.Message = "Internal Server Error"
		}
	case Timeout:
		if r.Timeout.TimeoutMs == 0 {
			r.Timeout.TimeoutMs = 8000
		}
	case RateLimit:
		if r.RateLimit.FailRate == 0 {
			r.RateLimit.FailRate = 50
		}
	case TokenBucket:
		if r.TokenBucket.RPS == 0 {
			r.TokenBucket.RPS = 10
		}
		if r.TokenBucket.Burst == 0 {
			r.TokenBucket.Burst = r.TokenBucket.RPS
		}
	}
}

// compile recompiles PathPattern, per the §4.2 fallback: an unparseable
// pattern degrades to substring matching and never errors.
func (r *Rule) compile() {
	re, err := regexp.Compile(r.PathPattern)
	if err != nil {
		r.re = nil
		r.literal = true
		return
	}
	r.re = re
	r.literal = false
}

// MatchesPath reports whether path satisfies the rule's PathPattern, using
// the compiled regex or, on compile failure, plain substring containment.
func (r *Rule) MatchesPath(path string) bool {
	if r.literal {
		return strings.Contains(path, r.PathPattern)
	}
	return r.re.MatchString(path)
}

// AdmitsMethod reports whether method is allowed by the rule's Methods set.
// Wildcard "*" is absorbing; comparison is case-insensitive.
func (r *Rule) AdmitsMethod(method string) bool {
	for _, m := range r.Methods {
		if m == Wildcard || strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Clone returns a defensive deep copy, used whenever a Rule crosses the
// engine's API boundary (spec.md §4.1: "returned values are defensively
// copied so callers cannot mutate stored state").
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.Methods = append([]string(nil), r.Methods...)
	return &c
}

// Recompile must be called after any field mutation that affects matching
// (PathPattern, or a future defaulting pass) so the cached regex/literal
// flag stays consistent with the stored pattern.
func (r *Rule) Recompile() {
	r.compile()
}
