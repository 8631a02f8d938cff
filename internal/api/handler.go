package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lumina/login-gate/internal/audit"
	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/logging"
	"lumina/login-gate/internal/orchestrator"
	"lumina/login-gate/internal/store"
)

// auditTimeout bounds delivery of one record to all sinks.
const auditTimeout = 10 * time.Second

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	gate    *orchestrator.Orchestrator
	store   *store.Store
	audit   *audit.Fanout
	pending sync.WaitGroup
}

// NewHandler creates a Handler. fanout may be nil.
func NewHandler(gate *orchestrator.Orchestrator, s *store.Store, fanout *audit.Fanout) *Handler {
	if fanout == nil {
		fanout = audit.NewFanout()
	}
	return &Handler{gate: gate, store: s, audit: fanout}
}

// Wait blocks until in-flight audit deliveries finish.
func (h *Handler) Wait() {
	h.pending.Wait()
}

// PostLoginResponse is returned to the platform for one login attempt.
type PostLoginResponse struct {
	DecisionID string           `json:"decision_id"`
	Outcome    domain.Outcome   `json:"outcome"`
	Commands   []domain.Command `json:"commands"`
}

// ─── POST /api/v1/post-login ──────────────────────────────────────────────────

// PostLogin runs the gate for one login event and returns the recorded
// capability calls. Any structurally wrong event still gets a decision
// through the fallback policy.
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	var ev domain.LoginEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	rec := &orchestrator.Recorder{}
	res := h.gate.Execute(r.Context(), &ev, rec)

	commands := rec.Commands
	if commands == nil {
		commands = []domain.Command{}
	}

	decision := &domain.DecisionRecord{
		ID:        uuid.NewString(),
		AccountID: res.AccountID,
		EventType: res.EventType,
		Verdict:   res.Verdict,
		Outcome:   res.Outcome,
		Fallback:  res.Fallback,
		Commands:  commands,
		DecidedAt: time.Now().UTC(),
	}
	if res.Err != nil {
		decision.Error = res.Err.Error()
	}

	if err := h.store.SaveDecision(decision); err != nil {
		// the platform still gets its answer
		logging.L(r.Context()).Error("save decision", "decision_id", decision.ID, "error", err)
	}
	h.publish(r.Context(), decision)

	ok(w, PostLoginResponse{
		DecisionID: decision.ID,
		Outcome:    decision.Outcome,
		Commands:   commands,
	})
}

// publish delivers rec to the audit sinks without holding up the response.
func (h *Handler) publish(ctx context.Context, rec *domain.DecisionRecord) {
	if h.audit.Len() == 0 {
		return
	}
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		// Fanout logs and counts each failure.
		_ = h.audit.Publish(ctx, rec)
	}()
}

// ─── GET /api/v1/decisions/{id} ───────────────────────────────────────────────

// GetDecision returns one recent decision.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, found := h.store.GetDecision(id)
	if !found {
		notFound(w, "decision '"+id+"' not found")
		return
	}
	ok(w, rec)
}

// ─── GET /api/v1/accounts/{accountId}/decisions ──────────────────────────────

// ListAccountDecisions returns recent decisions for one account, newest first.
func (h *Handler) ListAccountDecisions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if unescaped, err := url.PathUnescape(accountID); err == nil {
		accountID = unescaped
	}
	records := h.store.DecisionsByAccount(accountID)
	if records == nil {
		records = []*domain.DecisionRecord{}
	}
	ok(w, map[string]any{
		"account_id": accountID,
		"count":      len(records),
		"decisions":  records,
	})
}
