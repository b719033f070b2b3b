package models

import "github.com/google/uuid"

// Envelope wraps every chat and user response.
type Envelope struct {
	Status  string      `json:"status"` // "success" | "error"
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse is the error form of the envelope.
type ErrorResponse struct {
	Status    string            `json:"status"` // always "error"
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"` // "stream_chunk" | "stream_done" | "stream_error"
	Payload interface{} `json:"payload"`
}

type StreamChunk struct {
	SessionID string `json:"session_id,omitempty"`
	Chunk     string `json:"chunk"`
	Index     int    `json:"index"`
}

type StreamDone struct {
	SessionID  string `json:"session_id,omitempty"`
	ExchangeID string `json:"exchange_id,omitempty"`
}

type StreamFailure struct {
	SessionID    string `json:"session_id,omitempty"`
	ErrorMessage string `json:"error_message"`
}

// StreamChannel is the pub/sub channel carrying a user's live events.
func StreamChannel(userID uuid.UUID) string {
	return "chat_stream:" + userID.String()
}
