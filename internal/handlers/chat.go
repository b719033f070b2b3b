package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/models"
)

type chatService interface {
	StartSession(ctx context.Context) uuid.UUID
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Exchange, error)
	Ask(ctx context.Context, req models.AskRequest) (*models.Exchange, error)
	Generate(ctx context.Context, userID uuid.UUID, prompt string) (string, error)
	History(ctx context.Context, userID, sessionID string) ([]models.Exchange, error)
	ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error)
}

type ChatHandler struct {
	chatService chatService
}

func NewChatHandler(chatService chatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID := h.chatService.StartSession(r.Context())
	writeSuccess(w, http.StatusOK, models.StartSessionResponse{SessionID: sessionID}, "")
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.authorize(w, r, req.UserID) {
		return
	}

	exchange, err := h.chatService.SendMessage(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, exchange, "")
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.authorize(w, r, req.UserID) {
		return
	}

	exchange, err := h.chatService.Ask(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, exchange, "")
}

func (h *ChatHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !h.authorize(w, r, userID) {
		return
	}

	sessions, err := h.chatService.ListSessions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.SessionInfo{}
	}
	writeSuccess(w, http.StatusOK, sessions, "")
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !h.authorize(w, r, userID) {
		return
	}

	exchanges, err := h.chatService.History(r.Context(), userID, chi.URLParam(r, "sessionId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if exchanges == nil {
		exchanges = []models.Exchange{}
	}
	writeSuccess(w, http.StatusOK, exchanges, "")
}

func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	html, err := h.chatService.Generate(r.Context(), middleware.GetUserID(r.Context()), req.Prompt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, models.GenerateResponse{Response: html}, "")
}

// authorize rejects requests naming a user other than the token's subject.
// Missing or malformed ids pass through so the service reports them as
// validation errors.
func (h *ChatHandler) authorize(w http.ResponseWriter, r *http.Request, claimed string) bool {
	id, err := uuid.Parse(strings.TrimSpace(claimed))
	if err != nil {
		return true
	}
	if id != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return false
	}
	return true
}
