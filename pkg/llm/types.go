package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Detail levels understood by vision models.
const (
	DetailAuto = "auto"
	DetailLow  = "low"
	DetailHigh = "high"
)

// Request is a single multimodal chat turn.
type Request struct {
	System      string
	Instruction string
	Images      []imageref.Image
	MaxTokens   int
	Temperature float32
	Detail      string
}

// Invoker sends one request to a vision-capable chat model and returns the first choice's text.
type Invoker interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string

	APIKey  string
	Model   string
	BaseURL string

	AzureEndpoint   string
	AzureAPIVersion string
	AzureDeployment string

	Logger zerolog.Logger
}

// New builds the invoker for cfg.Provider.
func New(ctx context.Context, cfg Config) (Invoker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return wrap(NewOpenAIInvoker(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Logger:  cfg.Logger,
		}))
	case ProviderAzure:
		if cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("azure openai endpoint is required")
		}
		return wrap(NewOpenAIInvoker(OpenAIConfig{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			AzureEndpoint:   cfg.AzureEndpoint,
			AzureAPIVersion: cfg.AzureAPIVersion,
			AzureDeployment: cfg.AzureDeployment,
			Logger:          cfg.Logger,
		}))
	case ProviderGemini:
		return wrap(NewGeminiInvoker(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
			Logger: cfg.Logger,
		}))
	case ProviderAnthropic:
		return wrap(NewAnthropicInvoker(AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Logger:  cfg.Logger,
		}))
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// wrap keeps a failed constructor from yielding a non-nil interface holding a nil pointer.
func wrap[T Invoker](inv T, err error) (Invoker, error) {
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func normalizeDetail(detail string) string {
	switch strings.ToLower(strings.TrimSpace(detail)) {
	case DetailLow:
		return DetailLow
	case DetailHigh:
		return DetailHigh
	default:
		return DetailAuto
	}
}
