package api

import "github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/rules"

// ruleDTO is the flat external JSON shape a rule is read from and written
// back as. Internally a Rule is a tagged variant selected by chaosType
// (SPEC_FULL.md's polymorphic-chaos design note); this is the one place
// that boundary gets crossed, so the rest of the engine never has to deal
// with "field present for the wrong type".
type ruleDTO struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Enabled     *bool    `json:"enabled,omitempty"`
	PathPattern string   `json:"pathPattern"`
	Methods     []string `json:"methods,omitempty"`
	ChaosType   string   `json:"chaosType"`

	LatencyMs        int  `json:"latencyMs,omitempty"`
	LatencyMinMs     int  `json:"latencyMinMs,omitempty"`
	LatencyMaxMs     int  `json:"latencyMaxMs,omitempty"`
	StreamingLatency bool `json:"streamingLatency,omitempty"`

	ErrorStatusCode int    `json:"errorStatusCode,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`

	TimeoutMs int `json:"timeoutMs,omitempty"`
	JitterMs  int `json:"jitterMs,omitempty"`

	FailRate *int `json:"failRate,omitempty"`

	RPS   float64  `json:"rps,omitempty"`
	Burst *float64 `json:"burst,omitempty"`
}

// toRule builds a *rules.Rule from the DTO (used by the create path): the
// id, if supplied, is passed to rules.New, which applies chaos-type
// defaults; the DTO's parameters and enabled flag are then overlaid. A
// token-bucket rule sent without burst gets burst equal to its rps.
func (d ruleDTO) toRule() *rules.Rule {
	r := rules.New(parseUUIDOrNil(d.ID), d.Name, d.PathPattern, d.Methods, rules.ChaosType(d.ChaosType))
	d.applyParams(r)
	if r.ChaosType == rules.TokenBucket && d.Burst == nil {
		r.TokenBucket.Burst = r.TokenBucket.RPS
	}
	if d.Enabled != nil {
		r.Enabled = *d.Enabled
	}
	return r
}

// applyOnto overlays the DTO fields that are set (non-zero values, or
// non-nil for the pointer fields, which may carry an explicit zero) onto
// an existing rule, used by PUT /rules/:id so a partial body only touches
// the fields it names.
func (d ruleDTO) applyOnto(r *rules.Rule) {
	if d.Name != "" {
		r.Name = d.Name
	}
	if d.Enabled != nil {
		r.Enabled = *d.Enabled
	}
	if d.PathPattern != "" {
		r.PathPattern = d.PathPattern
	}
	if len(d.Methods) > 0 {
		r.Methods = d.Methods
	}
	if d.ChaosType != "" {
		r.ChaosType = rules.ChaosType(d.ChaosType)
	}
	d.applyParams(r)
}

func (d ruleDTO) applyParams(r *rules.Rule) {
	if d.LatencyMs != 0 {
		r.Latency.FixedMs = d.LatencyMs
	}
	if d.LatencyMinMs != 0 {
		r.Latency.MinMs = d.LatencyMinMs
	}
	if d.LatencyMaxMs != 0 {
		r.Latency.MaxMs = d.LatencyMaxMs
	}
	if d.StreamingLatency {
		r.Latency.Streaming = true
	}
	if d.ErrorStatusCode != 0 {
		r.Error.StatusCode = d.ErrorStatusCode
	}
	if d.ErrorMessage != "" {
		r.Error.Message = d.ErrorMessage
	}
	if d.TimeoutMs != 0 {
		r.Timeout.TimeoutMs = d.TimeoutMs
	}
	if d.JitterMs != 0 {
		r.Timeout.JitterMs = d.JitterMs
	}
	// FailRate and Burst use pointers, not zero-checks: an explicit 0 from
	// the wire (failRate=0 never triggers drop_rate, burst=0 blocks every
	// token-bucket request) must survive the defaults rules.New applies,
	// so absence (nil) is the only thing that means "leave the default".
	if d.FailRate != nil {
		r.RateLimit.FailRate = *d.FailRate
	}
	if d.RPS != 0 {
		r.TokenBucket.RPS = d.RPS
	}
	if d.Burst != nil {
		r.TokenBucket.Burst = *d.Burst
	}
}

// fromRule flattens a Rule back into its external JSON shape.
func fromRule(r *rules.Rule) ruleDTO {
	return ruleDTO{
		ID:               r.ID.String(),
		Name:             r.Name,
		Enabled:          &r.Enabled,
		PathPattern:      r.PathPattern,
		Methods:          r.Methods,
		ChaosType:        string(r.ChaosType),
		LatencyMs:        r.Latency.FixedMs,
		LatencyMinMs:     r.Latency.MinMs,
		LatencyMaxMs:     r.Latency.MaxMs,
		StreamingLatency: r.Latency.Streaming,
		ErrorStatusCode:  r.Error.StatusCode,
		ErrorMessage:     r.Error.Message,
		TimeoutMs:        r.Timeout.TimeoutMs,
		JitterMs:         r.Timeout.JitterMs,
		FailRate:         &r.RateLimit.FailRate,
		RPS:              r.TokenBucket.RPS,
		Burst:            &r.TokenBucket.Burst,
	}
}
