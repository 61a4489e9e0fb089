// Package api exposes HTTP handlers for the gamification service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/gamification/internal/achievement"
	"example.com/gamification/internal/auth"
	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/observability"
	"example.com/gamification/internal/persistence"
)

// UnlockLister pages through a user's achievement unlocks, newest first.
type UnlockLister interface {
	ListUnlocks(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.UserAchievementUnlock, *domain.Cursor, error)
}

// Handler coordinates HTTP requests with the scoring service.
type Handler struct {
	service *domain.Service
	unlocks UnlockLister
	catalog *achievement.Catalog
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, unlocks UnlockLister, catalog *achievement.Catalog) *Handler {
	return &Handler{service: service, unlocks: unlocks, catalog: catalog}
}

// Router assembles the full route tree, including health and metrics
// endpoints that bypass authentication.
func (h *Handler) Router(authMW auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(authMW.Wrap)

	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(auth.RequireScope(auth.ScopeScoreWrite)).Post("/score", h.scoreEvent)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeScoreRead))
			r.Get("/achievements", h.listCatalog)
			r.Get("/users/{userID}/metrics", h.getUserMetrics)
			r.Get("/users/{userID}/achievements", h.listUserAchievements)
		})
	})

	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ScoreRequest is the payload for POST /v1/score.
type ScoreRequest struct {
	EventID             string              `json:"event_id,omitempty"`
	UserID              string              `json:"user_id"`
	Category            string              `json:"category"`
	Measurements        domain.Measurements `json:"measurements"`
	StartedAt           time.Time           `json:"started_at"`
	EndedAt             time.Time           `json:"ended_at,omitempty"`
	Source              string              `json:"source,omitempty"`
	ChallengeMultiplier float64             `json:"challenge_multiplier,omitempty"`
}

// Validate checks the fields the handler can reject before touching the
// scoring pipeline. Measurement ranges are the pipeline's concern.
func (r ScoreRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("category is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	return nil
}

// ScoreResponse describes the response body for a scoring pass.
type ScoreResponse struct {
	EventID   string                         `json:"event_id"`
	Breakdown domain.PointBreakdown          `json:"breakdown"`
	Unlocks   []domain.UserAchievementUnlock `json:"unlocks"`
	Metrics   MetricsView                    `json:"metrics"`
	Replay    bool                           `json:"idempotent_replay"`
	// RecordClaimUnconfirmed tells the caller its personal-record claim
	// was not borne out by the stored records.
	RecordClaimUnconfirmed bool `json:"record_claim_unconfirmed,omitempty"`
}

func (h *Handler) scoreEvent(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.service.ScoreEvent(r.Context(), domain.ScoreEventInput{
		EventID:             req.EventID,
		UserID:              req.UserID,
		Category:            req.Category,
		Measurements:        req.Measurements,
		StartedAt:           req.StartedAt,
		EndedAt:             req.EndedAt,
		Source:              domain.EventSource(req.Source),
		ChallengeMultiplier: req.ChallengeMultiplier,
	})
	if err != nil {
		switch {
		case domain.IsValidation(err):
			observability.RecordScored(req.Category, "invalid")
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrUnknownCategory):
			observability.RecordScored(req.Category, "unknown_category")
			writeError(w, http.StatusUnprocessableEntity, "unknown_category", err.Error())
		case errors.Is(err, domain.ErrVersionConflict):
			observability.RecordScored(req.Category, "conflict")
			writeError(w, http.StatusConflict, "conflict", "concurrent update, retry the request")
		default:
			observability.RecordScored(req.Category, "error")
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	status := http.StatusCreated
	if result.Replay {
		status = http.StatusOK
	} else {
		observability.RecordScored(req.Category, "ok")
		observability.RecordPoints(req.Category, result.Breakdown.Total)
		for _, unlock := range result.Unlocks {
			observability.RecordUnlock(unlock.AchievementKey)
		}
	}

	writeJSON(w, status, ScoreResponse{
		EventID:                result.EventID,
		Breakdown:              result.Breakdown,
		Unlocks:                emptyIfNil(result.Unlocks),
		Metrics:                toMetricsView(result.Metrics),
		Replay:                 result.Replay,
		RecordClaimUnconfirmed: result.Report.RecordClaimUnconfirmed,
	})
}

func (h *Handler) getUserMetrics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	metrics, err := h.service.UserMetrics(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if metrics == nil {
		writeError(w, http.StatusNotFound, "not_found", "user has no recorded activity")
		return
	}
	writeJSON(w, http.StatusOK, toMetricsView(*metrics))
}

// ListUnlocksResponse packages a page of achievement unlocks.
type ListUnlocksResponse struct {
	Items      []domain.UserAchievementUnlock `json:"items"`
	NextCursor string                         `json:"next_cursor,omitempty"`
}

func (h *Handler) listUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	items, next, err := h.unlocks.ListUnlocks(r.Context(), userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListUnlocksResponse{
		Items:      emptyIfNil(items),
		NextCursor: persistence.EncodeCursor(next),
	})
}

// CatalogResponse lists the active achievement definitions.
type CatalogResponse struct {
	Items []achievement.Definition `json:"items"`
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{Items: h.catalog.Definitions()})
}

// MetricsView is the external representation of a user's running state.
// Internal bookkeeping like volume history and the optimistic version stays
// out of the response.
type MetricsView struct {
	UserID         string             `json:"user_id"`
	LifetimePoints int64              `json:"lifetime_points"`
	WeeklyPoints   int64              `json:"weekly_points"`
	MonthlyPoints  int64              `json:"monthly_points"`
	EventCount     int64              `json:"event_count"`
	CurrentStreak  int                `json:"current_streak"`
	BestStreak     int                `json:"best_streak"`
	GraceTokens    int                `json:"grace_tokens"`
	LastActiveDate *time.Time         `json:"last_active_date,omitempty"`
	DistanceKM     map[string]float64 `json:"distance_km"`
	VolumeKG       map[string]float64 `json:"volume_kg"`
	Reps           map[string]int64   `json:"reps"`
	EventCounts    map[string]int64   `json:"event_counts"`
	Records        map[string]float64 `json:"records"`
}

func toMetricsView(m domain.UserMetrics) MetricsView {
	view := MetricsView{
		UserID:         m.UserID,
		LifetimePoints: m.LifetimePoints,
		WeeklyPoints:   m.WeeklyPoints,
		MonthlyPoints:  m.MonthlyPoints,
		EventCount:     m.EventCount,
		CurrentStreak:  m.CurrentStreak,
		BestStreak:     m.BestStreak,
		GraceTokens:    m.GraceTokens,
		DistanceKM:     m.DistanceKM,
		VolumeKG:       m.VolumeKG,
		Reps:           m.Reps,
		EventCounts:    m.EventCounts,
		Records:        m.Records,
	}
	if !m.LastActiveDate.IsZero() {
		last := m.LastActiveDate
		view.LastActiveDate = &last
	}
	return view
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
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
