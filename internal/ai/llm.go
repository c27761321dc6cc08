package ai

import (
	"context"
	"fmt"
	"time"

	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/logger"
	"chatpdf-backend/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Message is one role-tagged entry in a chat history.
type Message struct {
	Role string // models.RoleUser or models.RoleAssistant
	Text string
}

// LLMClient wraps the Gemini chat API with a circuit breaker and a
// client-side rate limiter so one flapping upstream cannot stall the
// whole chat path.
type LLMClient struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *telemetry.Metrics
	timeout time.Duration
}

func NewLLMClient(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*LLMClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	// Default matches the Gemini free tier (10 RPM), staying just under it
	rpm := cfg.LLMRequestsPerMinute
	if rpm <= 0 {
		rpm = 9
	}
	burst := cfg.LLMBurst
	if burst <= 0 {
		burst = 2
	}
	limiter := rate.NewLimiter(rate.Limit(rpm/60.0), burst)

	return &LLMClient{
		client:  client,
		model:   cfg.GeminiModel,
		breaker: breaker,
		limiter: limiter,
		metrics: metrics,
		timeout: time.Duration(cfg.GenerateTimeout) * time.Second,
	}, nil
}

// Generate sends the prompt with the given chat history and returns the
// model's text answer. All failures, including an open breaker, wrap
// fault.ErrGeneration.
func (c *LLMClient) Generate(ctx context.Context, history []Message, prompt string) (string, error) {
	tracer := otel.Tracer("llm-client")
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.history_len", len(history)),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("llm.rate_limited", true))
		return "", fmt.Errorf("%w: %v", fault.ErrGeneration, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(c.model)
		model.SetTemperature(0.7)
		model.SetMaxOutputTokens(2048)

		session := model.StartChat()
		session.History = toGenaiHistory(history)

		genCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := session.SendMessage(genCtx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		answer := extractText(resp)
		if answer == "" {
			return nil, fmt.Errorf("empty response from model")
		}

		tokens := extractTokenUsage(resp)
		span.SetAttributes(attribute.Int("llm.total_tokens", tokens))
		if c.metrics != nil {
			c.metrics.RecordTokensUsed(int64(tokens), c.model)
		}
		return answer, nil
	})

	if err != nil {
		span.SetAttributes(attribute.Bool("llm.error", true))
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("llm.circuit_breaker_open", true))
		}
		return "", fmt.Errorf("%w: %v", fault.ErrGeneration, err)
	}

	return result.(string), nil
}

func (c *LLMClient) Close() error {
	return c.client.Close()
}

func toGenaiHistory(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	text := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	// Rough estimate: ~4 characters per token
	estimated := len(extractText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
