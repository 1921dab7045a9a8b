package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/nightlife-concierge/internal/pagination"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
	"github.com/wolfman30/nightlife-concierge/internal/store"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

const (
	defaultRecommendationLimit = 20
	maxRecommendationLimit     = 100
)

// UserStateStore reads and resets the per-user recommendation state.
type UserStateStore interface {
	LoadProfile(ctx context.Context, userID string) (*preferences.Profile, error)
	Load(ctx context.Context, userID string) (*pagination.Cursor, error)
	ResetCursor(ctx context.Context, userID string) error
}

// HistoryReader returns a user's recent chat history.
type HistoryReader interface {
	Load(ctx context.Context, userID string) ([]store.Message, error)
}

// RecommendationReader lists archived recommendations.
type RecommendationReader interface {
	Recommendations(ctx context.Context, userID string, limit int) ([]store.Recommendation, error)
}

// AdminUsersHandler serves the support endpoints under /admin/users.
type AdminUsersHandler struct {
	state           UserStateStore
	history         HistoryReader
	recommendations RecommendationReader
	logger          *logging.Logger
}

// NewAdminUsersHandler creates the handler. recommendations may be nil when
// the Postgres archive is disabled.
func NewAdminUsersHandler(state UserStateStore, history HistoryReader, recommendations RecommendationReader, logger *logging.Logger) *AdminUsersHandler {
	if state == nil {
		panic("handlers: user state store cannot be nil")
	}
	if history == nil {
		panic("handlers: history reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminUsersHandler{
		state:           state,
		history:         history,
		recommendations: recommendations,
		logger:          logger,
	}
}

// UserProfileResponse is the body of GET /admin/users/{userID}/profile.
type UserProfileResponse struct {
	UserID   string               `json:"user_id"`
	Profile  *preferences.Profile `json:"profile"`
	Complete bool                 `json:"complete"`
	Missing  []preferences.Slot   `json:"missing"`
	Cursor   *pagination.Cursor   `json:"cursor,omitempty"`
}

// GetProfile handles GET /admin/users/{userID}/profile.
func (h *AdminUsersHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	profile, err := h.state.LoadProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load profile", "error", err, "user_id", userID)
		jsonError(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	cursor, err := h.state.Load(r.Context(), userID)
	if err != nil {
		h.logger.Warn("failed to load cursor", "error", err, "user_id", userID)
	}

	missing := preferences.MissingSlots(*profile)
	if missing == nil {
		missing = []preferences.Slot{}
	}
	writeJSON(w, http.StatusOK, UserProfileResponse{
		UserID:   userID,
		Profile:  profile,
		Complete: preferences.Complete(*profile),
		Missing:  missing,
		Cursor:   cursor,
	})
}

// GetHistory handles GET /admin/users/{userID}/history.
func (h *AdminUsersHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	messages, err := h.history.Load(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "user_id", userID)
		jsonError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"messages": messages,
		"count":    len(messages),
	})
}

// ResetCursor handles DELETE /admin/users/{userID}/cursor. The next turn for
// the user starts a fresh listing.
func (h *AdminUsersHandler) ResetCursor(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.state.ResetCursor(r.Context(), userID); err != nil {
		h.logger.Error("failed to reset cursor", "error", err, "user_id", userID)
		jsonError(w, "failed to reset cursor", http.StatusInternalServerError)
		return
	}
	h.logger.Info("pagination cursor reset", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// ListRecommendations handles GET /admin/users/{userID}/recommendations.
func (h *AdminUsersHandler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if h.recommendations == nil {
		jsonError(w, "recommendation archive disabled", http.StatusNotFound)
		return
	}

	limit := defaultRecommendationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecommendationLimit)
	}

	recs, err := h.recommendations.Recommendations(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "recommendation archive disabled", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to list recommendations", "error", err, "user_id", userID)
		jsonError(w, "failed to list recommendations", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []store.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"recommendations": recs,
	})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		jsonError(w, "user id required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
