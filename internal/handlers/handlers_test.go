package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/services"
)

// ─── Stubs ───

type stubChatService struct {
	exchange   *models.Exchange
	sessions   []models.SessionInfo
	history    []models.Exchange
	html       string
	err        error
	sendCalls  int
	gotSend    models.SendMessageRequest
	gotGenUser uuid.UUID
}

func (s *stubChatService) StartSession(ctx context.Context) uuid.UUID { return uuid.New() }

func (s *stubChatService) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Exchange, error) {
	s.sendCalls++
	s.gotSend = req
	return s.exchange, s.err
}

func (s *stubChatService) Ask(ctx context.Context, req models.AskRequest) (*models.Exchange, error) {
	return s.exchange, s.err
}

func (s *stubChatService) Generate(ctx context.Context, userID uuid.UUID, prompt string) (string, error) {
	s.gotGenUser = userID
	return s.html, s.err
}

func (s *stubChatService) History(ctx context.Context, userID, sessionID string) ([]models.Exchange, error) {
	return s.history, s.err
}

func (s *stubChatService) ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	return s.sessions, s.err
}

type stubAuthService struct {
	user   *models.User
	tokens *models.AuthTokens
	err    error
}

func (s *stubAuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return s.user, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, error) {
	return s.tokens, s.err
}

func (s *stubAuthService) RefreshToken(ctx context.Context, token string) (*models.AuthTokens, error) {
	return s.tokens, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, token string) error { return s.err }

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

// asUser stands in for the JWT middleware.
func asUser(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newChatRouter(userID uuid.UUID, svc chatService) http.Handler {
	h := NewChatHandler(svc)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(asUser(userID))
	r.Post("/chat/start", h.Start)
	r.Post("/chat/send", h.Send)
	r.Post("/chat/ask", h.Ask)
	r.Get("/chat/{userId}", h.Sessions)
	r.Get("/chat/{userId}/{sessionId}", h.History)
	r.Post("/generate", h.Generate)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

// ─── Chat Handler Tests ───

func TestSend_Success(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	svc := &stubChatService{exchange: &models.Exchange{ID: uuid.New(), UserID: userID, SessionID: sessionID, Prompt: "hi", Response: "hello"}}
	h := newChatRouter(userID, svc)

	rr := doJSON(t, h, http.MethodPost, "/chat/send", models.SendMessageRequest{
		UserID: userID.String(), SessionID: sessionID.String(), Prompt: "hi",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeEnvelope(t, rr)
	if body["status"] != "success" {
		t.Fatalf("expected success status, got %v", body["status"])
	}
	data, _ := body["data"].(map[string]interface{})
	if data["response"] != "hello" || data["sessionId"] != sessionID.String() {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestSend_OtherUserForbidden(t *testing.T) {
	svc := &stubChatService{}
	h := newChatRouter(uuid.New(), svc)

	rr := doJSON(t, h, http.MethodPost, "/chat/send", models.SendMessageRequest{
		UserID: uuid.NewString(), SessionID: uuid.NewString(), Prompt: "hi",
	})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if svc.sendCalls != 0 {
		t.Fatalf("expected service not to be called")
	}
}

func TestSend_MalformedBody(t *testing.T) {
	svc := &stubChatService{}
	h := newChatRouter(uuid.New(), svc)

	rr := doJSON(t, h, http.MethodPost, "/chat/send", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body["status"] != "error" || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error body: %v", body)
	}
	if id, _ := body["request_id"].(string); id == "" {
		t.Fatalf("expected request id in error body")
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"prompt": "Prompt is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"upstream", &services.UpstreamError{Backend: "gemini", Message: "timed out"}, http.StatusBadGateway, "AI_ERROR"},
		{"persistence", &services.PersistenceError{Op: "save exchange", Err: errors.New("db down")}, http.StatusInternalServerError, "PERSISTENCE_ERROR"},
		{"rate limit", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.New()
			h := newChatRouter(userID, &stubChatService{err: tt.err})

			rr := doJSON(t, h, http.MethodPost, "/chat/send", models.SendMessageRequest{
				UserID: userID.String(), SessionID: uuid.NewString(), Prompt: "hi",
			})
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			body := decodeEnvelope(t, rr)
			if body["code"] != tt.wantCode {
				t.Fatalf("expected code %s, got %v", tt.wantCode, body["code"])
			}
		})
	}
}

func TestSessionsAndHistory(t *testing.T) {
	userID := uuid.New()
	svc := &stubChatService{}
	h := newChatRouter(userID, svc)

	rr := doJSON(t, h, http.MethodGet, "/chat/"+userID.String(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if list, ok := body["data"].([]interface{}); !ok || len(list) != 0 {
		t.Fatalf("expected empty list, got %v", body["data"])
	}

	rr = doJSON(t, h, http.MethodGet, "/chat/"+uuid.NewString()+"/"+uuid.NewString(), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's history, got %d", rr.Code)
	}

	svc.history = []models.Exchange{{Prompt: "a", Response: "b"}}
	rr = doJSON(t, h, http.MethodGet, "/chat/"+userID.String()+"/"+uuid.NewString(), nil)
	body = decodeEnvelope(t, rr)
	if list, ok := body["data"].([]interface{}); !ok || len(list) != 1 {
		t.Fatalf("expected one exchange, got %v", body["data"])
	}
}

func TestStartAndGenerate(t *testing.T) {
	userID := uuid.New()
	svc := &stubChatService{html: "<p>hi</p>"}
	h := newChatRouter(userID, svc)

	rr := doJSON(t, h, http.MethodPost, "/chat/start", nil)
	body := decodeEnvelope(t, rr)
	data, _ := body["data"].(map[string]interface{})
	if _, err := uuid.Parse(data["sessionId"].(string)); err != nil {
		t.Fatalf("expected a session id, got %v", data)
	}

	rr = doJSON(t, h, http.MethodPost, "/generate", models.GenerateRequest{Prompt: "hi"})
	body = decodeEnvelope(t, rr)
	data, _ = body["data"].(map[string]interface{})
	if data["response"] != "<p>hi</p>" {
		t.Fatalf("expected html response, got %v", data)
	}
	if svc.gotGenUser != userID {
		t.Fatalf("expected token user to be passed to the service")
	}
}

// ─── Auth Handler Tests ───

func TestRegisterHandler(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", Username: "ada", PasswordHash: "secret-hash"}
	h := NewAuthHandler(&stubAuthService{user: user})

	rr := doJSON(t, http.HandlerFunc(h.Register), http.MethodPost, "/users/register", models.RegisterRequest{
		FullName: "Ada", Email: "ada@example.com", Username: "ada", Password: "engine1843",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("secret-hash")) {
		t.Fatalf("password hash leaked in response")
	}
}

func TestLoginHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bad credentials", &services.UnauthorizedError{Message: "Invalid email or password"}, http.StatusUnauthorized},
		{"conflict", &services.ConflictError{Message: "Email already in use"}, http.StatusConflict},
		{"not found", &services.NotFoundError{Message: "User not found"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&stubAuthService{err: tt.err})
			rr := doJSON(t, http.HandlerFunc(h.Login), http.MethodPost, "/users/login", models.LoginRequest{Email: "a@b.co", Password: "x"})
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestLoginHandler_Success(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{tokens: &models.AuthTokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}})
	rr := doJSON(t, http.HandlerFunc(h.Login), http.MethodPost, "/users/login", models.LoginRequest{Email: "a@b.co", Password: "x"})

	body := decodeEnvelope(t, rr)
	data, _ := body["data"].(map[string]interface{})
	if data["access_token"] != "a" || data["expires_in"] != float64(900) {
		t.Fatalf("unexpected token payload: %v", data)
	}
}
