package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

// GeminiInvoker implements Invoker against the Gemini generateContent API.
type GeminiInvoker struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiInvoker builds a Gemini client.
func NewGeminiInvoker(ctx context.Context, cfg GeminiConfig) (*GeminiInvoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &GeminiInvoker{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader-api/pkg/llm/gemini"),
		logger: cfg.Logger.With().Str("component", "llm_gemini").Logger(),
	}, nil
}

// Complete sends the instruction and images as one user turn.
func (g *GeminiInvoker) Complete(parent context.Context, req Request) (string, error) {
	ctx, span := g.tracer.Start(parent, "llm.gemini.complete", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("images", len(req.Images)),
	))
	defer span.End()

	parts, err := geminiParts(req)
	if err != nil {
		return "", fail(span, ProviderGemini, g.cfg.Model, err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, config)
	observe(ProviderGemini, g.cfg.Model, start)
	if err != nil {
		return "", fail(span, ProviderGemini, g.cfg.Model, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fail(span, ProviderGemini, g.cfg.Model, errors.New("no candidates returned"))
	}

	return text, nil
}

func geminiParts(req Request) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.NewPartFromText(req.Instruction))
	for _, img := range req.Images {
		if img.IsInline() {
			data, err := img.Bytes()
			if err != nil {
				return nil, fmt.Errorf("decode inline image: %w", err)
			}
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: data}})
			continue
		}
		mime, _ := imageref.MIMEForPath(img.URL)
		parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: img.URL, MIMEType: mime}})
	}
	return parts, nil
}
