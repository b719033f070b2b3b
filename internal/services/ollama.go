package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/stream"
)

// OllamaService is the streaming local backend.
type OllamaService struct {
	host       string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	converter  stream.Converter
}

func NewOllamaService(host, model string, timeout time.Duration) *OllamaService {
	return &OllamaService{
		host:    strings.TrimRight(host, "/"),
		model:   model,
		timeout: timeout,
		// No client timeout: the stream is bounded by the request context.
		httpClient: &http.Client{},
		converter:  stream.NewMarkdown(),
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Stream posts the prompt, drains the chunked reply through an accumulator
// and returns the converted HTML. onChunk observes each appended fragment.
func (s *OllamaService) Stream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaGenerateRequest{Model: s.model, Prompt: prompt, Stream: true})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", upstreamFromContext(models.BackendOllama, "generate", ctxErr)
		}
		return "", &UpstreamError{Backend: models.BackendOllama, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &UpstreamError{
			Backend: models.BackendOllama,
			Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	acc := stream.NewAccumulator(s.converter)
	html, err := acc.Consume(ctx, resp.Body, onChunk)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", upstreamFromContext(models.BackendOllama, "stream", ctxErr)
		}
		return "", &UpstreamError{Backend: models.BackendOllama, Message: "stream failed", Err: err}
	}
	return html, nil
}
