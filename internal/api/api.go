// Package api is the management REST surface: CRUD over chaos rules,
// proxy config, and the log ring, plus the ambient metrics and
// token-bucket-introspection endpoints.
//
// Grounded on the teacher's internal/chaos/admin.go (decode-patch-apply
// shape) and Rakshit-gen-Gateway-be's internal/handlers/route_handler.go
// (chi.URLParam-keyed CRUD handler shape), generalized to the
// {success,data,error} envelope and to this engine's rule/config/log
// domain.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/engine"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/middleware"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ratelimit"
)

// envelope is the uniform response shape every management endpoint uses.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler holds the dependencies the management surface reads and
// mutates.
type Handler struct {
	Engine   *engine.Engine
	Registry *ratelimit.Registry
}

// NewRouter builds the chi router for the management API, CORS-enabled
// for a dev-tool UI served from a different origin than the engine
// itself.
func NewRouter(eng *engine.Engine, registry *ratelimit.Registry, allowOrigins []string) http.Handler {
	h := &Handler{Engine: eng, Registry: registry}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/metrics", h.Metrics)

	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.GetConfig)
		r.Put("/", h.UpdateConfig)
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Post("/", h.CreateRule)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRule)
			r.Put("/", h.UpdateRule)
			r.Delete("/", h.DeleteRule)
			r.Get("/bucket", h.RuleBucket)
		})
	})

	r.Route("/logs", func(r chi.Router) {
		r.Get("/", h.ListLogs)
		r.Delete("/", h.ClearLogs)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func parseUUIDOrNil(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics serves the percentile/error/drop snapshot middleware.Metrics
// has been accumulating.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, middleware.GetMetrics())
}

// GetConfig returns the current proxy target/enabled state.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.Engine.GetConfig())
}

// UpdateConfig merges a partial patch onto the stored config.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch engine.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeData(w, http.StatusOK, h.Engine.UpdateConfig(patch))
}

// ListRules returns every rule in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rs := h.Engine.ListRules()
	out := make([]ruleDTO, len(rs))
	for i, r := range rs {
		out[i] = fromRule(r)
	}
	writeData(w, http.StatusOK, out)
}

// CreateRule appends a new rule to the end of the evaluation order.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var dto ruleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.Name == "" || dto.PathPattern == "" || dto.ChaosType == "" {
		writeError(w, http.StatusBadRequest, "name, pathPattern, and chaosType are required")
		return
	}
	rule := dto.toRule()
	if _, exists := h.Engine.GetRule(rule.ID); exists {
		writeError(w, http.StatusConflict, "rule id already exists")
		return
	}
	created := h.Engine.CreateRule(rule)
	writeData(w, http.StatusCreated, fromRule(created))
}

// GetRule returns a single rule by id.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, ok := h.Engine.GetRule(id)
	if !ok {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	writeData(w, http.StatusOK, fromRule(rule))
}

// UpdateRule applies a partial patch to an existing rule, id immutable.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var dto ruleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, ok := h.Engine.UpdateRule(id, dto.applyOnto)
	if !ok {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	writeData(w, http.StatusOK, fromRule(updated))
}

// DeleteRule removes a rule by id.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if !h.Engine.DeleteRule(id) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RuleBucket is an ambient debug endpoint exposing the live token-bucket
// state for a token-bucket rule, keyed the same way the pipeline keys it
// (method:ruleID) — ?method= selects which bucket to read, defaulting to
// GET.
func (h *Handler) RuleBucket(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if _, ok := h.Engine.GetRule(id); !ok {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	method := r.URL.Query().Get("method")
	if method == "" {
		method = "GET"
	}
	tokens, lastRefill, ok := h.Registry.Snapshot(method + ":" + id.String())
	if !ok {
		writeData(w, http.StatusOK, map[string]any{"initialized": false})
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"initialized": true,
		"tokens":      tokens,
		"lastRefill":  lastRefill,
	})
}

// ListLogs returns up to ?limit= entries, newest first (default/absence
// of limit returns all retained entries).
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeData(w, http.StatusOK, h.Engine.ReadLogs(limit))
}

// ClearLogs empties the log ring.
func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	h.Engine.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}
