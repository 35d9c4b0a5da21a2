package llmservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-backend/internal/config"
	"rag-backend/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Client sends single prompts to a language model. It is safe for
// concurrent use when the underlying model is.
type Client struct {
	llm           llms.Model
	timeout       time.Duration
	maxRetries    int
	stripThinking bool
	newBackOff    func() backoff.BackOff
}

// NewModel builds the langchaingo model selected by cfg.Provider.
func NewModel(cfg *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("Creating llm")
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "ollama", "":
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// New wraps llm with the timeout and retry policy from cfg.
func New(llm llms.Model, cfg *config.LLMConfig) *Client {
	return &Client{
		llm:           llm,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		stripThinking: cfg.StripThinking,
		newBackOff:    newBackOff,
	}
}

// NewFromConfig creates the model and wraps it.
func NewFromConfig(cfg *config.LLMConfig) (*Client, error) {
	llm, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	return New(llm, cfg), nil
}

// Complete sends prompt to the model and returns the generated text. Every
// attempt gets its own timeout. Failures are wrapped in models.ErrCompletion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(max(c.maxRetries, 0))),
		ctx,
	)
	attempt := 0
	text, err := backoff.RetryNotifyWithData(
		func() (string, error) {
			attempt++
			return c.completeOnce(ctx, prompt)
		},
		policy,
		func(err error, wait time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("Retrying completion")
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrCompletion, err)
	}
	return text, nil
}

func (c *Client) completeOnce(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		return "", err
	}
	if c.stripThinking {
		text = strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
	}
	return text, nil
}
