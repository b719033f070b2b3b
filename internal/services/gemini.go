package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chatrelay-backend/internal/models"
)

// GeminiService is the single-shot hosted backend.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	timeout  time.Duration
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int, timeout time.Duration) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	configureModel(model)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		timeout:  timeout,
		rateChan: rateChan,
	}, nil
}

func configureModel(model *genai.GenerativeModel) {
	model.SetTemperature(0.7)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(1024)

	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	model.SafetySettings = make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		model.SafetySettings = append(model.SafetySettings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockMediumAndAbove,
		})
	}
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends one prompt and returns the raw text of the first
// candidate. The wait for both the rate slot and the reply is bounded by
// the configured timeout.
func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.acquireRate(ctx); err != nil {
		return "", upstreamFromContext(models.BackendGemini, "waiting for a request slot", err)
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", upstreamFromContext(models.BackendGemini, "generate content", ctxErr)
		}
		return "", &UpstreamError{Backend: models.BackendGemini, Message: "request failed", Err: err}
	}

	text, err := firstCandidateText(resp)
	if err != nil {
		log.Printf("Gemini returned an unusable payload: %v", err)
		return "", &UpstreamError{Backend: models.BackendGemini, Message: "invalid response format", Err: err}
	}
	return text, nil
}

// firstCandidateText reads candidates[0].content.parts[0].text; any missing
// link in that chain is an error.
func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response")
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("no candidates")
	}

	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		if cand != nil && cand.FinishReason == genai.FinishReasonSafety {
			return "", errors.New("candidate blocked by safety filters")
		}
		return "", errors.New("candidate has no content")
	}

	text, ok := cand.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("first part is %T, not text", cand.Content.Parts[0])
	}

	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		return "", errors.New("candidate text is empty")
	}
	return trimmed, nil
}

func upstreamFromContext(backend, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Backend: backend, Message: op + " timed out", Err: err}
	}
	return &UpstreamError{Backend: backend, Message: op + " cancelled", Err: err}
}
