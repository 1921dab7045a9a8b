package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/nightlife-concierge/internal/pagination"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
	"github.com/wolfman30/nightlife-concierge/internal/store"
)

type stubState struct {
	profile  *preferences.Profile
	cursor   *pagination.Cursor
	err      error
	resetFor string
}

func (s *stubState) LoadProfile(context.Context, string) (*preferences.Profile, error) {
	return s.profile, s.err
}

func (s *stubState) Load(context.Context, string) (*pagination.Cursor, error) {
	return s.cursor, nil
}

func (s *stubState) ResetCursor(_ context.Context, userID string) error {
	if s.err != nil {
		return s.err
	}
	s.resetFor = userID
	return nil
}

type stubHistory struct {
	messages []store.Message
	err      error
}

func (s *stubHistory) Load(context.Context, string) ([]store.Message, error) {
	return s.messages, s.err
}

type stubRecommendations struct {
	recs      []store.Recommendation
	err       error
	lastLimit int
}

func (s *stubRecommendations) Recommendations(_ context.Context, _ string, limit int) ([]store.Recommendation, error) {
	s.lastLimit = limit
	return s.recs, s.err
}

func newAdminRouter(h *AdminUsersHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/users/{userID}/profile", h.GetProfile)
	r.Get("/admin/users/{userID}/history", h.GetHistory)
	r.Delete("/admin/users/{userID}/cursor", h.ResetCursor)
	r.Get("/admin/users/{userID}/recommendations", h.ListRecommendations)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGetProfile(t *testing.T) {
	profile := preferences.New()
	profile.Gender = preferences.GenderMan
	profile.MusicPreferences = []string{"House"}
	state := &stubState{
		profile: &profile,
		cursor:  &pagination.Cursor{Offset: 5, Fingerprint: "fp"},
	}
	router := newAdminRouter(NewAdminUsersHandler(state, &stubHistory{}, nil, nil))

	rec := doRequest(t, router, http.MethodGet, "/admin/users/447700900001/profile")
	require.Equal(t, http.StatusOK, rec.Code)

	var body UserProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "447700900001", body.UserID)
	assert.False(t, body.Complete)
	assert.Equal(t, []preferences.Slot{preferences.SlotBudget, preferences.SlotVibe}, body.Missing)
	require.NotNil(t, body.Cursor)
	assert.Equal(t, 5, body.Cursor.Offset)
}

func TestGetProfileNotFoundAndError(t *testing.T) {
	router := newAdminRouter(NewAdminUsersHandler(&stubState{}, &stubHistory{}, nil, nil))
	rec := doRequest(t, router, http.MethodGet, "/admin/users/nobody/profile")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	router = newAdminRouter(NewAdminUsersHandler(&stubState{err: errors.New("redis down")}, &stubHistory{}, nil, nil))
	rec = doRequest(t, router, http.MethodGet, "/admin/users/u1/profile")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis down")
}

func TestGetHistory(t *testing.T) {
	history := &stubHistory{messages: []store.Message{
		{Role: "user", Content: "hi", Timestamp: time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)},
		{Role: "assistant", Content: "Welcome", Timestamp: time.Date(2026, 10, 19, 20, 0, 1, 0, time.UTC)},
	}}
	router := newAdminRouter(NewAdminUsersHandler(&stubState{}, history, nil, nil))

	rec := doRequest(t, router, http.MethodGet, "/admin/users/u1/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID   string          `json:"user_id"`
		Messages []store.Message `json:"messages"`
		Count    int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "Welcome", body.Messages[1].Content)
}

func TestGetHistoryEmptyIsArray(t *testing.T) {
	router := newAdminRouter(NewAdminUsersHandler(&stubState{}, &stubHistory{}, nil, nil))
	rec := doRequest(t, router, http.MethodGet, "/admin/users/u1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
}

func TestResetCursor(t *testing.T) {
	state := &stubState{}
	router := newAdminRouter(NewAdminUsersHandler(state, &stubHistory{}, nil, nil))

	rec := doRequest(t, router, http.MethodDelete, "/admin/users/u1/cursor")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", state.resetFor)
}

func TestListRecommendations(t *testing.T) {
	recs := &stubRecommendations{recs: []store.Recommendation{{
		ID:     uuid.New(),
		UserID: "u1",
		Branch: "recommendation",
		Venues: []string{"Tape London", "Toy Room"},
	}}}
	router := newAdminRouter(NewAdminUsersHandler(&stubState{}, &stubHistory{}, recs, nil))

	rec := doRequest(t, router, http.MethodGet, "/admin/users/u1/recommendations?limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRecommendationLimit, recs.lastLimit)
	assert.Contains(t, rec.Body.String(), "Tape London")

	rec = doRequest(t, router, http.MethodGet, "/admin/users/u1/recommendations?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecommendationsArchiveDisabled(t *testing.T) {
	router := newAdminRouter(NewAdminUsersHandler(&stubState{}, &stubHistory{}, nil, nil))
	rec := doRequest(t, router, http.MethodGet, "/admin/users/u1/recommendations")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	router = newAdminRouter(NewAdminUsersHandler(&stubState{}, &stubHistory{}, &stubRecommendations{err: store.ErrNotFound}, nil))
	rec = doRequest(t, router, http.MethodGet, "/admin/users/u1/recommendations")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "oops", body["error"])
}
