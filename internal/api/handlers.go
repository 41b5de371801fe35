// Package api exposes the HTTP surface of the automation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nieko-nera/core/internal/auth"
	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/engine"
	"github.com/nieko-nera/core/internal/events"
)

// UserStore is the slice of the history store the API needs.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*domain.UserData, error)
}

// Handler coordinates HTTP requests with the evaluation engine.
type Handler struct {
	engine *engine.Engine
	users  UserStore
	logger *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(eng *engine.Engine, users UserStore, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags)
	}
	return &Handler{engine: eng, users: users, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/evaluations", h.evaluations)
	mux.HandleFunc("/v1/properties", h.properties)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// evaluations dry-runs a condition list against a submitted activity. Nothing
// is persisted and no verdict events are staged.
func (h *Handler) evaluations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAutomationEvaluate) {
		writeError(w, http.StatusForbidden, "forbidden", "scope automation:evaluate required")
		return
	}

	var req EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity := req.Activity.ToActivity()
	// The authenticated subject owns the dry run regardless of the submitted
	// payload.
	activity.UserID = claims.Subject

	user, err := h.users.GetUser(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	evaluation := h.engine.NewEvaluation(user, &activity)
	matched := true
	results := make([]ConditionResult, 0, len(req.Conditions))
	for _, cond := range req.Conditions {
		verdict, err := evaluation.CheckCondition(r.Context(), cond)
		result := ConditionResult{
			Property: cond.Property,
			Operator: cond.Operator,
			Matched:  verdict,
		}
		if err != nil {
			h.logger.Printf("dry run condition %s: %v", cond.Property, err)
			result.Error = err.Error()
		}
		if !verdict {
			matched = false
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, EvaluationResponse{
		EvaluationID: uuid.NewString(),
		Matched:      matched,
		Results:      results,
		EvaluatedAt:  time.Now().UTC(),
	})
}

// properties lists the supported property/operator matrix for recipe builders.
func (h *Handler) properties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAutomationRead) && !claims.HasScope(auth.ScopeAutomationEvaluate) {
		writeError(w, http.StatusForbidden, "forbidden", "scope automation:read required")
		return
	}

	writeJSON(w, http.StatusOK, PropertiesResponse{Properties: engine.Properties()})
}

// EvaluationRequest is the payload for POST /v1/evaluations. The activity
// document matches the shape carried on the activity_events stream.
type EvaluationRequest struct {
	Activity   events.ActivityProcessed `json:"activity"`
	Conditions []domain.Condition       `json:"conditions"`
}

// maxDryRunConditions bounds a single dry-run request.
const maxDryRunConditions = 50

// Validate ensures request correctness, vetting every condition the same way
// the recipe loader does.
func (r EvaluationRequest) Validate() error {
	if len(r.Conditions) == 0 {
		return errors.New("at least one condition is required")
	}
	if len(r.Conditions) > maxDryRunConditions {
		return errors.New("too many conditions")
	}
	for i, cond := range r.Conditions {
		if err := engine.ValidateCondition(cond); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

// ConditionResult is the verdict for a single dry-run condition.
type ConditionResult struct {
	Property string          `json:"property"`
	Operator domain.Operator `json:"operator"`
	Matched  bool            `json:"matched"`
	Error    string          `json:"error,omitempty"`
}

// EvaluationResponse describes the response body for a dry run.
type EvaluationResponse struct {
	EvaluationID string            `json:"evaluation_id"`
	Matched      bool              `json:"matched"`
	Results      []ConditionResult `json:"results"`
	EvaluatedAt  time.Time         `json:"evaluated_at"`
}

// PropertiesResponse packages the property matrix.
type PropertiesResponse struct {
	Properties []engine.PropertyInfo `json:"properties"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
