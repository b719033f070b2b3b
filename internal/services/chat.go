package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/prompt"
)

type exchangeRepository interface {
	Create(ctx context.Context, e *models.Exchange) error
	ListRecent(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]models.Exchange, error)
	ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Exchange, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.SessionInfo, error)
	SessionSummary(ctx context.Context, userID, sessionID uuid.UUID) (string, error)
}

type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type streamGenerator interface {
	Stream(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

type quotaLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) error
}

type eventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

type ChatConfig struct {
	WindowSize     int
	DefaultBackend string
}

// ChatService loads history, builds the outbound prompt, calls a backend
// and stores the resulting exchange.
type ChatService struct {
	exchanges      exchangeRepository
	gemini         textGenerator
	ollama         streamGenerator
	formatter      *prompt.Formatter
	quota          quotaLimiter
	publisher      eventPublisher
	windowSize     int
	defaultBackend string
}

func NewChatService(
	exchanges exchangeRepository,
	gemini textGenerator,
	ollama streamGenerator,
	formatter *prompt.Formatter,
	quota quotaLimiter,
	publisher eventPublisher,
	cfg ChatConfig,
) *ChatService {
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = models.BackendGemini
	}
	return &ChatService{
		exchanges:      exchanges,
		gemini:         gemini,
		ollama:         ollama,
		formatter:      formatter,
		quota:          quota,
		publisher:      publisher,
		windowSize:     cfg.WindowSize,
		defaultBackend: cfg.DefaultBackend,
	}
}

// StartSession allocates a session id. Nothing is stored: the session comes
// into being with its first exchange.
func (s *ChatService) StartSession(ctx context.Context) uuid.UUID {
	return uuid.New()
}

func (s *ChatService) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Exchange, error) {
	fields := make(map[string]string)
	userID := parseRequiredID(fields, "userId", req.UserID)
	sessionID := parseRequiredID(fields, "sessionId", req.SessionID)
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		fields["prompt"] = "Prompt is required"
	}
	backend := strings.ToLower(strings.TrimSpace(req.Backend))
	if backend == "" {
		backend = s.defaultBackend
	}
	if backend != models.BackendGemini && backend != models.BackendOllama {
		fields["backend"] = "Backend must be gemini or ollama"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}

	history, err := s.exchanges.ListRecent(ctx, userID, &sessionID, s.windowSize)
	if err != nil {
		return nil, &PersistenceError{Op: "load history", Err: err}
	}

	summary, err := s.exchanges.SessionSummary(ctx, userID, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "load session summary", Err: err}
	}
	if summary == "" {
		summary = prompt.SessionLabel(text)
	}

	outbound := s.formatter.Format(prompt.BuildContext(text, history, s.windowSize))

	response, err := s.generate(ctx, backend, userID, sessionID, outbound)
	if err != nil {
		return nil, err
	}

	exchange := &models.Exchange{
		UserID:    userID,
		SessionID: sessionID,
		Prompt:    text,
		Response:  response,
		Summary:   summary,
		Backend:   backend,
	}
	if err := s.exchanges.Create(ctx, exchange); err != nil {
		return nil, &PersistenceError{Op: "save exchange", Err: err}
	}

	if backend == models.BackendOllama {
		s.publish(ctx, userID, models.WSMessage{
			Type:    "stream_done",
			Payload: models.StreamDone{SessionID: sessionID.String(), ExchangeID: exchange.ID.String()},
		})
	}

	return exchange, nil
}

// Ask answers with context drawn from all of the user's recent exchanges,
// regardless of session, and files the result under a new session.
func (s *ChatService) Ask(ctx context.Context, req models.AskRequest) (*models.Exchange, error) {
	fields := make(map[string]string)
	userID := parseRequiredID(fields, "userId", req.UserID)
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		fields["prompt"] = "Prompt is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}

	history, err := s.exchanges.ListRecent(ctx, userID, nil, s.windowSize)
	if err != nil {
		return nil, &PersistenceError{Op: "load history", Err: err}
	}

	sessionID := uuid.New()
	outbound := s.formatter.Format(prompt.BuildContext(text, history, s.windowSize))

	response, err := s.generate(ctx, models.BackendGemini, userID, sessionID, outbound)
	if err != nil {
		return nil, err
	}

	exchange := &models.Exchange{
		UserID:    userID,
		SessionID: sessionID,
		Prompt:    text,
		Response:  response,
		Summary:   prompt.SessionLabel(text),
		Backend:   models.BackendGemini,
	}
	if err := s.exchanges.Create(ctx, exchange); err != nil {
		return nil, &PersistenceError{Op: "save exchange", Err: err}
	}
	return exchange, nil
}

// Generate sends a bare prompt to the streaming backend and returns HTML.
// Nothing is stored. A failed markdown conversion yields "".
func (s *ChatService) Generate(ctx context.Context, userID uuid.UUID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Fields: map[string]string{"prompt": "Prompt is required"}}
	}

	if err := s.allow(ctx, userID); err != nil {
		return "", err
	}

	html, err := s.ollama.Stream(ctx, text, s.chunkPublisher(ctx, userID, ""))
	if err != nil {
		s.publishFailure(ctx, userID, "", err)
		return "", asUpstream(models.BackendOllama, err)
	}
	s.publish(ctx, userID, models.WSMessage{Type: "stream_done", Payload: models.StreamDone{}})
	return html, nil
}

func (s *ChatService) History(ctx context.Context, userIDStr, sessionIDStr string) ([]models.Exchange, error) {
	fields := make(map[string]string)
	userID := parseRequiredID(fields, "userId", userIDStr)
	sessionID := parseRequiredID(fields, "sessionId", sessionIDStr)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	exchanges, err := s.exchanges.ListBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "load history", Err: err}
	}
	return exchanges, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userIDStr string) ([]models.SessionInfo, error) {
	fields := make(map[string]string)
	userID := parseRequiredID(fields, "userId", userIDStr)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	sessions, err := s.exchanges.ListSessions(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

func (s *ChatService) generate(ctx context.Context, backend string, userID, sessionID uuid.UUID, outbound string) (string, error) {
	switch backend {
	case models.BackendOllama:
		html, err := s.ollama.Stream(ctx, outbound, s.chunkPublisher(ctx, userID, sessionID.String()))
		if err != nil {
			s.publishFailure(ctx, userID, sessionID.String(), err)
			return "", asUpstream(backend, err)
		}
		if strings.TrimSpace(html) == "" {
			s.publishFailure(ctx, userID, sessionID.String(), errors.New("empty response"))
			return "", &UpstreamError{Backend: backend, Message: "empty response"}
		}
		return html, nil

	default:
		raw, err := s.gemini.Generate(ctx, outbound)
		if err != nil {
			return "", asUpstream(backend, err)
		}
		cleaned := prompt.Normalize(raw)
		if cleaned == "" {
			return "", &UpstreamError{Backend: backend, Message: "empty response after normalization"}
		}
		return cleaned, nil
	}
}

func (s *ChatService) allow(ctx context.Context, userID uuid.UUID) error {
	if s.quota == nil {
		return nil
	}
	return s.quota.Allow(ctx, userID)
}

func (s *ChatService) chunkPublisher(ctx context.Context, userID uuid.UUID, sessionID string) func(string) {
	if s.publisher == nil {
		return nil
	}
	index := 0
	return func(chunk string) {
		s.publisher.Publish(ctx, userID, models.WSMessage{
			Type:    "stream_chunk",
			Payload: models.StreamChunk{SessionID: sessionID, Chunk: chunk, Index: index},
		})
		index++
	}
}

func (s *ChatService) publishFailure(ctx context.Context, userID uuid.UUID, sessionID string, err error) {
	log.Printf("Streaming generation failed for user %s: %v", userID, err)
	s.publish(ctx, userID, models.WSMessage{
		Type:    "stream_error",
		Payload: models.StreamFailure{SessionID: sessionID, ErrorMessage: "Generation failed"},
	})
}

func (s *ChatService) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, userID, msg)
	}
}

func asUpstream(backend string, err error) error {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr
	}
	return &UpstreamError{Backend: backend, Message: "request failed", Err: err}
}

func parseRequiredID(fields map[string]string, name, value string) uuid.UUID {
	value = strings.TrimSpace(value)
	if value == "" {
		fields[name] = name + " is required"
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		fields[name] = name + " must be a valid UUID"
		return uuid.Nil
	}
	return id
}
