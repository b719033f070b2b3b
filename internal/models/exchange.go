package models

import (
	"time"

	"github.com/google/uuid"
)

// Backend names accepted by the chat endpoints.
const (
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

// Exchange is one user prompt paired with one model response. Rows are
// written once and never updated.
type Exchange struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	SessionID uuid.UUID `json:"sessionId"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Summary   string    `json:"summary,omitempty"`
	Backend   string    `json:"backend"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionInfo is the derived view of a session: sessions have no row of
// their own, only the exchanges that share a session id.
type SessionInfo struct {
	SessionID      uuid.UUID `json:"sessionId"`
	Summary        string    `json:"summary"`
	ExchangeCount  int       `json:"exchangeCount"`
	StartedAt      time.Time `json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// SendMessageRequest is the payload for POST /chat/send.
type SendMessageRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
	Backend   string `json:"backend,omitempty"`
}

// AskRequest is the payload for POST /chat/ask.
type AskRequest struct {
	UserID string `json:"userId"`
	Prompt string `json:"prompt"`
}

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

type StartSessionResponse struct {
	SessionID uuid.UUID `json:"sessionId"`
}
