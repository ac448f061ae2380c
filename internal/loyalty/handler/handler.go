// Package handler exposes the loyalty engine over HTTP for the embedding
// server. It is a thin layer: rule evaluation and ledger semantics live in
// the engine, and this package only translates requests and errors.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loyalty/internal/loyalty/metrics"
	"loyalty/internal/loyalty/models"
	"loyalty/internal/loyalty/ports"
	"loyalty/internal/platform/middleware"
	dErrors "loyalty/pkg/domain-errors"
	"loyalty/pkg/platform/sentinel"
)

// Engine is the trigger surface the handler needs.
type Engine interface {
	Trigger(ctx context.Context, event, userID string, payload any) error
}

// Ledger covers the manual point operations. Manual calls bypass rule
// matching; tier re-evaluation happens on the next trigger.
type Ledger interface {
	Add(ctx context.Context, userID string, amount int64, action string) (*models.UserProfile, error)
	Subtract(ctx context.Context, userID string, amount int64, action string) (*models.UserProfile, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

// Handler handles loyalty endpoints.
type Handler struct {
	logger  *slog.Logger
	engine  Engine
	ledger  Ledger
	store   ports.Storage
	metrics *metrics.Metrics
}

// New creates a loyalty Handler.
func New(engine Engine, ledger Ledger, store ports.Storage, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		engine:  engine,
		ledger:  ledger,
		store:   store,
		metrics: m,
	}
}

// Register registers the loyalty routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/loyalty/events", h.handleTriggerEvent)
	r.Post("/loyalty/users/{userID}/points/add", h.handleAddPoints)
	r.Post("/loyalty/users/{userID}/points/subtract", h.handleSubtractPoints)
	r.Get("/loyalty/users/{userID}/balance", h.handleGetBalance)
	r.Get("/loyalty/users/{userID}/profile", h.handleGetProfile)
}

type triggerRequest struct {
	Event   string          `json:"event"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) handleTriggerEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Event == "" || req.UserID == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "event and user_id are required"))
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event payload"))
			return
		}
	}

	if err := h.engine.Trigger(ctx, req.Event, req.UserID, payload); err != nil {
		h.logger.WarnContext(ctx, "event processing failed",
			"request_id", requestID,
			"event", req.Event,
			"user_id", req.UserID,
			"error", err.Error(),
		)
		writeError(w, translate(err))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type pointsRequest struct {
	Amount int64  `json:"amount"`
	Action string `json:"action"`
}

type profileResponse struct {
	UserID  string               `json:"user_id"`
	Points  int64                `json:"points"`
	TierID  string               `json:"tier_id,omitempty"`
	History []models.LedgerEntry `json:"history"`
	Tier    *models.Tier         `json:"tier,omitempty"`
}

func (h *Handler) handleAddPoints(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, h.ledger.Add, "manual_credit", func(amount int64) {
		if h.metrics != nil {
			h.metrics.PointsAwarded.Add(float64(amount))
		}
	})
}

func (h *Handler) handleSubtractPoints(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, h.ledger.Subtract, "manual_debit", func(amount int64) {
		if h.metrics != nil {
			h.metrics.PointsRedeemed.Add(float64(amount))
		}
	})
}

type mutation func(ctx context.Context, userID string, amount int64, action string) (*models.UserProfile, error)

func (h *Handler) handleMutation(w http.ResponseWriter, r *http.Request, apply mutation, defaultAction string, count func(int64)) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Action == "" {
		req.Action = defaultAction
	}

	profile, err := apply(ctx, userID, req.Amount, req.Action)
	if err != nil {
		writeError(w, translate(err))
		return
	}
	count(req.Amount)

	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.Balance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, translate(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	profile, err := h.store.GetUserProfile(ctx, userID)
	if err != nil {
		writeError(w, translate(err))
		return
	}
	if profile == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown user"))
		return
	}

	resp := profileResponse{
		UserID:  profile.UserID,
		Points:  profile.Points,
		TierID:  profile.TierID,
		History: profile.History,
	}
	if profile.TierID != "" {
		tiers, err := h.store.GetTiers(ctx)
		if err != nil {
			writeError(w, translate(err))
			return
		}
		for i := range tiers {
			if tiers[i].ID == profile.TierID {
				resp.Tier = &tiers[i]
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// translate maps ledger sentinel errors to coded domain errors; anything else
// surfaces as an internal storage failure.
func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidAmount):
		return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "amount must be positive")
	case errors.Is(err, sentinel.ErrInsufficientBalance):
		return dErrors.Wrap(err, dErrors.CodeInsufficientBalance, "balance too low")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// endpoint returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(code),
	})
}
