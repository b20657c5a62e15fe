package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultAzureAPIVersion = "2024-05-01-preview"

// OpenAIConfig configures the OpenAI chat completion backend. Setting AzureEndpoint switches to Azure OpenAI.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	AzureEndpoint   string
	AzureAPIVersion string
	AzureDeployment string

	Logger zerolog.Logger
}

// OpenAIInvoker implements Invoker against the (Azure) OpenAI chat completion API.
type OpenAIInvoker struct {
	client   *openai.Client
	cfg      OpenAIConfig
	provider string
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewOpenAIInvoker builds an invoker using the provided configuration.
func NewOpenAIInvoker(cfg OpenAIConfig) (*OpenAIInvoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	provider := ProviderOpenAI
	var config openai.ClientConfig
	if cfg.AzureEndpoint != "" {
		provider = ProviderAzure
		if cfg.AzureAPIVersion == "" {
			cfg.AzureAPIVersion = defaultAzureAPIVersion
		}
		if cfg.AzureDeployment == "" {
			return nil, fmt.Errorf("azure openai deployment is required")
		}
		if cfg.Model == "" {
			cfg.Model = cfg.AzureDeployment
		}
		config = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		config.APIVersion = cfg.AzureAPIVersion
		deployment := cfg.AzureDeployment
		config.AzureModelMapperFunc = func(string) string { return deployment }
	} else {
		if cfg.Model == "" {
			cfg.Model = openai.GPT4o
		}
		config = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}

	return &OpenAIInvoker{
		client:   openai.NewClientWithConfig(config),
		cfg:      cfg,
		provider: provider,
		tracer:   otel.Tracer("github.com/noah-isme/gema-grader-api/pkg/llm/openai"),
		logger:   cfg.Logger.With().Str("component", "llm_"+provider).Logger(),
	}, nil
}

// Complete sends a single user turn, with an optional system turn, and returns the first choice.
func (o *OpenAIInvoker) Complete(parent context.Context, req Request) (string, error) {
	ctx, span := o.tracer.Start(parent, "llm."+o.provider+".complete", trace.WithAttributes(
		attribute.String("model", o.cfg.Model),
		attribute.Int("images", len(req.Images)),
		attribute.Int("max_tokens", req.MaxTokens),
	))
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: o.parts(req),
	})

	request := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    messages,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, request)
	observe(o.provider, o.cfg.Model, start)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			o.logger.Warn().Int("status", apiErr.HTTPStatusCode).Str("code", fmt.Sprint(apiErr.Code)).Msg("completion rejected")
		}
		return "", fail(span, o.provider, o.cfg.Model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fail(span, o.provider, o.cfg.Model, errors.New("no choices returned"))
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fail(span, o.provider, o.cfg.Model, errors.New("empty completion"))
	}

	span.SetAttributes(
		attribute.Int("usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	o.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("completion received")

	return content, nil
}

func (o *OpenAIInvoker) parts(req Request) []openai.ChatMessagePart {
	detail := openai.ImageURLDetail(normalizeDetail(req.Detail))
	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.Instruction,
	})
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.DataURL(),
				Detail: detail,
			},
		})
	}
	return parts
}
