package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/engine"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ratelimit"
)

func newTestRouter() (http.Handler, *engine.Engine) {
	eng := engine.New()
	r := NewRouter(eng, ratelimit.NewRegistry(), []string{"*"})
	return r, eng
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestConfigGetAndUpdate(t *testing.T) {
	r, _ := newTestRouter()

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"targetUrl":"http://upstream.local","enabled":true}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/config/", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/config/", nil))
	env := decodeEnvelope(t, rec2)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var cfg engine.Config
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, "http://upstream.local", cfg.TargetURL)
	assert.True(t, cfg.Enabled)
}

func TestRuleCRUD(t *testing.T) {
	r, _ := newTestRouter()

	createBody := strings.NewReader(`{"name":"slow-checkout","pathPattern":"/checkout","chaosType":"latency","latencyMs":250}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/", createBody))
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	data, _ := json.Marshal(env.Data)
	var created ruleDTO
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "slow-checkout", created.Name)
	assert.Equal(t, 250, created.LatencyMs)
	require.NotEmpty(t, created.ID)

	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/rules/"+created.ID+"/", nil))
	assert.Equal(t, http.StatusOK, getRec.Code)

	updateRec := httptest.NewRecorder()
	updateBody := strings.NewReader(`{"latencyMs":500}`)
	r.ServeHTTP(updateRec, httptest.NewRequest(http.MethodPut, "/rules/"+created.ID+"/", updateBody))
	require.Equal(t, http.StatusOK, updateRec.Code)
	updatedEnv := decodeEnvelope(t, updateRec)
	updatedData, _ := json.Marshal(updatedEnv.Data)
	var updated ruleDTO
	require.NoError(t, json.Unmarshal(updatedData, &updated))
	assert.Equal(t, 500, updated.LatencyMs)
	assert.Equal(t, created.ID, updated.ID)

	deleteRec := httptest.NewRecorder()
	r.ServeHTTP(deleteRec, httptest.NewRequest(http.MethodDelete, "/rules/"+created.ID+"/", nil))
	assert.Equal(t, http.StatusNoContent, deleteRec.Code)

	missingRec := httptest.NewRecorder()
	r.ServeHTTP(missingRec, httptest.NewRequest(http.MethodGet, "/rules/"+created.ID+"/", nil))
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestRuleCreateExplicitZeroFailRateAndBurstSurvive(t *testing.T) {
	r, _ := newTestRouter()

	createBody := strings.NewReader(`{"name":"never-drops","pathPattern":"/x","chaosType":"rate-limit","failRate":0}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/", createBody))
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	data, _ := json.Marshal(env.Data)
	var created ruleDTO
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotNil(t, created.FailRate)
	assert.Equal(t, 0, *created.FailRate)

	createBody2 := strings.NewReader(`{"name":"always-blocked","pathPattern":"/y","chaosType":"token-bucket","burst":0}`)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/rules/", createBody2))
	require.Equal(t, http.StatusCreated, rec2.Code)

	env2 := decodeEnvelope(t, rec2)
	data2, _ := json.Marshal(env2.Data)
	var created2 ruleDTO
	require.NoError(t, json.Unmarshal(data2, &created2))
	require.NotNil(t, created2.Burst)
	assert.Equal(t, 0.0, *created2.Burst)
}

func TestRuleCreateRejectsMissingFields(t *testing.T) {
	r, _ := newTestRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogsListAndClear(t *testing.T) {
	r, eng := newTestRouter()
	eng.AppendLog(engine.LogEntry{ID: "1", Method: "GET", Path: "/x", StatusCode: 200})
	eng.AppendLog(engine.LogEntry{ID: "2", Method: "GET", Path: "/y", StatusCode: 200})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/?limit=1", nil))
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	entries, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, entries, 1)

	clearRec := httptest.NewRecorder()
	r.ServeHTTP(clearRec, httptest.NewRequest(http.MethodDelete, "/logs/", nil))
	assert.Equal(t, http.StatusNoContent, clearRec.Code)

	afterRec := httptest.NewRecorder()
	r.ServeHTTP(afterRec, httptest.NewRequest(http.MethodGet, "/logs/", nil))
	afterEnv := decodeEnvelope(t, afterRec)
	assert.Empty(t, afterEnv.Data)
}

func TestRuleBucketUninitialized(t *testing.T) {
	r, eng := newTestRouter()
	createBody := strings.NewReader(`{"name":"tb","pathPattern":"/x","chaosType":"token-bucket"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/", createBody))
	require.Equal(t, http.StatusCreated, rec.Code)

	rules := eng.ListRules()
	require.Len(t, rules, 1)

	bucketRec := httptest.NewRecorder()
	r.ServeHTTP(bucketRec, httptest.NewRequest(http.MethodGet, "/rules/"+rules[0].ID.String()+"/bucket", nil))
	assert.Equal(t, http.StatusOK, bucketRec.Code)
	env := decodeEnvelope(t, bucketRec)
	data, _ := json.Marshal(env.Data)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, false, body["initialized"])
}
