package chaos

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ratelimit"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/rules"
)

func TestEvaluatePreNoRule(t *testing.T) {
	d := EvaluatePre(nil, ratelimit.NewRegistry(), "/x", "GET")
	assert.Equal(t, NotTerminal, d.Terminal)
	assert.Equal(t, []string{"match:no_rule"}, d.Actions)
	assert.Nil(t, d.Rule)
}

func TestEvaluatePreError(t *testing.T) {
	r := rules.New(uuid.Nil, "boom", ".*", []string{"*"}, rules.Error)
	r.Error.StatusCode = 503
	r.Error.Message = "nope"
	d := EvaluatePre([]*rules.Rule{r}, ratelimit.NewRegistry(), "/anything", "GET")

	require.Equal(t, TerminalResponse, d.Terminal)
	assert.Equal(t, 503, d.StatusCode)
	var body map[string]any
	require.NoError(t, json.Unmarshal(d.Body, &body))
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "nope", body["message"])
	assert.Equal(t, true, body["chaosMonkey"])
}

func TestEvaluatePreDropRateBoundaries(t *testing.T) {
	zero := rules.New(uuid.Nil, "z", ".*", []string{"*"}, rules.RateLimit)
	zero.RateLimit.FailRate = 0
	for i := 0; i < 100; i++ {
		d := EvaluatePre([]*rules.Rule{zero}, ratelimit.NewRegistry(), "/x", "GET")
		assert.Equal(t, NotTerminal, d.Terminal)
	}

	hundred := rules.New(uuid.Nil, "h", ".*", []string{"*"}, rules.RateLimit)
	hundred.RateLimit.FailRate = 100
	for i := 0; i < 100; i++ {
		d := EvaluatePre([]*rules.Rule{hundred}, ratelimit.NewRegistry(), "/x", "GET")
		assert.Equal(t, TerminalResponse, d.Terminal)
		assert.Equal(t, 429, d.StatusCode)
	}
}

func TestEvaluatePreTokenBucket(t *testing.T) {
	reg := ratelimit.NewRegistry()
	r := rules.New(uuid.Nil, "tb", ".*", []string{"*"}, rules.TokenBucket)
	r.TokenBucket.RPS = 2
	r.TokenBucket.Burst = 2

	outcomes := make([]bool, 4)
	var lastRetryAfter string
	for i := range outcomes {
		d := EvaluatePre([]*rules.Rule{r}, reg, "/x", "GET")
		outcomes[i] = d.Terminal == NotTerminal
		if d.Terminal == TerminalResponse {
			lastRetryAfter = d.Headers["Retry-After"]
		}
	}
	assert.Equal(t, []bool{true, true, false, false}, outcomes)
	assert.Equal(t, "1", lastRetryAfter)
}

func TestEvaluatePreTimeoutZero(t *testing.T) {
	r := rules.New(uuid.Nil, "t", "/slow", []string{"*"}, rules.Timeout)
	r.Timeout.TimeoutMs = 0
	r.Timeout.JitterMs = 0
	d := EvaluatePre([]*rules.Rule{r}, ratelimit.NewRegistry(), "/slow", "GET")
	require.Equal(t, TerminalHang, d.Terminal)
	assert.Equal(t, int64(0), d.HangDuration.Milliseconds())
}

func TestEvaluatePreLatencyAndCorruptNotTerminal(t *testing.T) {
	lat := rules.New(uuid.Nil, "l", "/a.*", []string{"*"}, rules.Latency)
	d := EvaluatePre([]*rules.Rule{lat}, ratelimit.NewRegistry(), "/ax", "GET")
	assert.Equal(t, NotTerminal, d.Terminal)
	require.NotNil(t, d.Rule)
	assert.Equal(t, rules.Latency, d.Rule.ChaosType)

	corr := rules.New(uuid.Nil, "c", "/j", []string{"*"}, rules.Corrupt)
	d2 := EvaluatePre([]*rules.Rule{corr}, ratelimit.NewRegistry(), "/j", "GET")
	assert.Equal(t, NotTerminal, d2.Terminal)
}

func TestEvaluatePostLatencyAndCorrupt(t *testing.T) {
	lat := rules.New(uuid.Nil, "l", "/a", []string{"*"}, rules.Latency)
	lat.Latency.FixedMs = 200
	eff, actions := EvaluatePost(lat)
	assert.Equal(t, 200, eff.DelayMs)
	assert.Equal(t, []string{"latency:200ms"}, actions)

	corr := rules.New(uuid.Nil, "c", "/j", []string{"*"}, rules.Corrupt)
	eff2, actions2 := EvaluatePost(corr)
	assert.True(t, eff2.Corrupt)
	assert.Nil(t, actions2)

	eff3, actions3 := EvaluatePost(nil)
	assert.False(t, eff3.Corrupt)
	assert.Equal(t, 0, eff3.DelayMs)
	assert.Nil(t, actions3)
}

func TestCorruptJSONBodyArray(t *testing.T) {
	body := []byte(`[1,2,3]`)
	out, action := CorruptJSONBody(body)
	require.True(t, action == "corrupt_json:removed_index:0" ||
		action == "corrupt_json:removed_index:1" ||
		action == "corrupt_json:removed_index:2" ||
		action == "corrupt_json:null_index:0" ||
		action == "corrupt_json:null_index:1" ||
		action == "corrupt_json:null_index:2")
	assert.NotEqual(t, string(body), string(out))

	var v []any
	require.NoError(t, json.Unmarshal(out, &v))
}

func TestCorruptJSONBodyObject(t *testing.T) {
	body := []byte(`{"a":1,"b":2}`)
	out, action := CorruptJSONBody(body)
	assert.Contains(t, action, "corrupt_json:")
	assert.NotEqual(t, string(body), string(out))

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	if strings.HasPrefix(action, "corrupt_json:removed_key:") {
		assert.Len(t, v, 1)
	} else {
		// The nullify branch keeps the key and sets its value to null.
		require.True(t, strings.HasPrefix(action, "corrupt_json:null_value:"), action)
		key := strings.TrimPrefix(action, "corrupt_json:null_value:")
		assert.Len(t, v, 2)
		assert.Contains(t, v, key)
		assert.Nil(t, v[key])
	}
}

func TestCorruptJSONBodyEdgeCases(t *testing.T) {
	out, action := CorruptJSONBody([]byte(`[]`))
	assert.Equal(t, "corrupt_json:skipped(reason=empty_array)", action)
	assert.Equal(t, `[]`, string(out))

	out, action = CorruptJSONBody([]byte(`{}`))
	assert.Equal(t, "corrupt_json:skipped(reason=empty_object)", action)
	assert.Equal(t, `{}`, string(out))

	out, action = CorruptJSONBody([]byte(`42`))
	assert.Equal(t, "corrupt_json:skipped(reason=primitive_value)", action)
	assert.Equal(t, `42`, string(out))

	out, action = CorruptJSONBody([]byte(`not json`))
	assert.Equal(t, "corrupt_json:skipped(reason=parse_error)", action)
	assert.Equal(t, `not json`, string(out))
}

func TestCorruptJSONBodyNeverPanics(t *testing.T) {
	inputs := [][]byte{nil, []byte(""), []byte("{"), []byte(`{"a":[1,2,{"b":3}]}`)}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			CorruptJSONBody(in)
		})
	}
}
