package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/nightlife-concierge/internal/http/middleware"
	"github.com/wolfman30/nightlife-concierge/internal/pagination"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
	"github.com/wolfman30/nightlife-concierge/internal/store"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

const adminSecret = "router-secret"

type fakeChannel struct {
	verified int
	posted   int
}

func (f *fakeChannel) HandleVerification(w http.ResponseWriter, r *http.Request) {
	f.verified++
	w.WriteHeader(http.StatusOK)
}

func (f *fakeChannel) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	f.posted++
	w.WriteHeader(http.StatusOK)
}

type emptyState struct{}

func (emptyState) LoadProfile(context.Context, string) (*preferences.Profile, error) {
	p := preferences.New()
	return &p, nil
}
func (emptyState) Load(context.Context, string) (*pagination.Cursor, error) { return nil, nil }
func (emptyState) ResetCursor(context.Context, string) error                { return nil }

type emptyHistory struct{}

func (emptyHistory) Load(context.Context, string) ([]store.Message, error) { return nil, nil }

func newTestRouter(t *testing.T, channel *fakeChannel, simulatorToken string) http.Handler {
	t.Helper()

	logger := logging.Default()
	queue := conversation.NewMemoryQueue(8)
	jobs := conversation.NewMemoryJobStore()
	convHandler := conversation.NewHandler(conversation.NewPublisher(queue, logger), jobs, logger)

	return New(&Config{
		Logger:              logger,
		WhatsApp:            channel,
		ConversationHandler: convHandler,
		AdminUsers:          handlers.NewAdminUsersHandler(emptyState{}, emptyHistory{}, nil, logger),
		MetricsHandler:      http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
		AdminAuthSecret:     adminSecret,
		SimulatorToken:      simulatorToken,
		WebhookRateLimit:    100,
		WebhookRateBurst:    100,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeChannel{}, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeChannel{}, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# metrics") {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterWhatsAppRoutes(t *testing.T) {
	channel := &fakeChannel{}
	router := newTestRouter(t, channel, "")

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{}")))

	if channel.verified != 1 || channel.posted != 1 {
		t.Fatalf("expected both webhook routes to be mounted, got verify=%d post=%d", channel.verified, channel.posted)
	}
}

func TestRouterConversationSimulator(t *testing.T) {
	router := newTestRouter(t, &fakeChannel{}, "sim-token")

	body := `{"user_id":"447700900001","message":"hi"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/conversations/messages", strings.NewReader(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without simulator token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/conversations/messages", strings.NewReader(body))
	req.Header.Set("X-Simulator-Token", "sim-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var accepted struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&accepted); err != nil || accepted.JobID == "" {
		t.Fatalf("expected job id, got %v (%v)", accepted, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/conversations/jobs/"+accepted.JobID, nil)
	req.Header.Set("X-Simulator-Token", "sim-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"pending"`) {
		t.Fatalf("expected pending job, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterAdminRequiresJWT(t *testing.T) {
	router := newTestRouter(t, &fakeChannel{}, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/users/u1/profile", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	claims := httpmiddleware.AdminClaims{
		Role: httpmiddleware.RoleSupport,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(adminSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/users/u1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rr.Code)
	}
}

func TestRequireSimulatorTokenDisabledWhenEmpty(t *testing.T) {
	called := false
	h := requireSimulatorToken("  ")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("expected pass-through when no token is configured")
	}
}
