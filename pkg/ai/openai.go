// Package ai provides the OpenAI-backed decision service. The model output is
// advisory: the orchestrator always re-runs the constraint pipeline, so a bad
// or missing response degrades to rule-based sizing, never to a failed run.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/oddsflow/oddsflow/pkg/protocol"
)

const defaultTimeout = 10 * time.Second

const systemPrompt = `You are a prediction-market position-sizing reviewer.
Given a market snapshot, the current portfolio, the sizing rules, and a signal,
reply with a single JSON object:
{"decision": "HOLD|BUY|REDUCE|CLOSE|FLIP", "recommended_size": <fraction of bankroll>,
"risk_score": <0..1>, "reasoning": "<short>", "confidence": <0..1>}.
Never recommend a size above the configured caps.`

// OpenAIDecisionService implements protocol.DecisionService on the OpenAI
// chat completion API.
type OpenAIDecisionService struct {
	client  *openai.Client
	logger  *slog.Logger
	model   string
	timeout time.Duration
}

// NewOpenAIDecisionService creates a decision service. An empty model defaults
// to gpt-4o-mini; a zero timeout defaults to 10s.
func NewOpenAIDecisionService(logger *slog.Logger, apiKey, model string, timeout time.Duration) *OpenAIDecisionService {
	if model == "" {
		model = openai.GPT4oMini
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAIDecisionService{
		client:  openai.NewClient(apiKey),
		logger:  logger,
		model:   model,
		timeout: timeout,
	}
}

// Decide asks the model for an advisory sizing decision. The call runs under
// a hard timeout; the caller treats any error as a fallback signal.
func (s *OpenAIDecisionService) Decide(ctx context.Context, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return protocol.DecisionResponse{}, fmt.Errorf("failed to marshal decision request: %w", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return protocol.DecisionResponse{}, &protocol.ExternalServiceError{Service: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return protocol.DecisionResponse{}, &protocol.ExternalServiceError{
			Service: "openai",
			Err:     fmt.Errorf("no choices in completion for model %s", s.model),
		}
	}

	var decision protocol.DecisionResponse

	err = json.Unmarshal([]byte(resp.Choices[0].Message.Content), &decision)
	if err != nil {
		return protocol.DecisionResponse{}, &protocol.ExternalServiceError{
			Service: "openai",
			Err:     fmt.Errorf("failed to parse model response: %w", err),
		}
	}

	s.logger.DebugContext(ctx, "AI decision received",
		"decision", decision.Decision,
		"recommended_size", decision.RecommendedSize,
		"confidence", decision.Confidence)

	return decision, nil
}
