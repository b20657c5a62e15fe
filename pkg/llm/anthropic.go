package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicConfig configures the Anthropic messages backend.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// AnthropicInvoker implements Invoker against the Anthropic messages API.
type AnthropicInvoker struct {
	client anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicInvoker constructs an Anthropic-backed invoker.
func NewAnthropicInvoker(cfg AnthropicConfig) (*AnthropicInvoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicInvoker{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader-api/pkg/llm/anthropic"),
		logger: cfg.Logger.With().Str("component", "llm_anthropic").Logger(),
	}, nil
}

// Complete sends the instruction and images as one user message and joins the text blocks of the reply.
func (a *AnthropicInvoker) Complete(parent context.Context, req Request) (string, error) {
	ctx, span := a.tracer.Start(parent, "llm.anthropic.complete", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.Int("images", len(req.Images)),
	))
	defer span.End()

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		if img.IsInline() {
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64))
			continue
		}
		blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL}))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Instruction))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, params)
	observe(ProviderAnthropic, a.cfg.Model, start)
	if err != nil {
		return "", fail(span, ProviderAnthropic, a.cfg.Model, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fail(span, ProviderAnthropic, a.cfg.Model, errors.New("no text content returned"))
	}

	a.logger.Debug().
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("completion received")

	return text.String(), nil
}
