// Package bootstrap builds the shared runtime pieces used by every binary.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/config"
	"github.com/noah-isme/gema-grader-api/pkg/grading"
	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

// NewLogger returns a JSON logger at the configured level. Development runs get console output.
func NewLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	if cfg.AppEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

// Settings maps configuration onto pipeline settings.
func Settings(cfg config.Config) grading.Settings {
	settings := grading.DefaultSettings()
	settings.Extraction = grading.Params{MaxTokens: cfg.ExtractionMaxTokens, Temperature: cfg.ExtractionTemperature}
	settings.Refinement = grading.Params{MaxTokens: cfg.RefineMaxTokens, Temperature: cfg.RefineTemperature}
	settings.Evaluation = grading.Params{MaxTokens: cfg.EvaluationMaxTokens, Temperature: cfg.EvaluationTemperature}
	settings.Detail = cfg.ImageDetail
	settings.RefineMath = cfg.RefineMath
	settings.ReferenceImage = cfg.ReferenceImage
	return settings
}

// LLMConfig selects the model backend from configuration.
func LLMConfig(cfg config.Config, logger zerolog.Logger) llm.Config {
	apiKey, model := cfg.ProviderCredentials()
	out := llm.Config{
		Provider: cfg.AIProvider,
		APIKey:   apiKey,
		Model:    model,
		Logger:   logger,
	}
	switch cfg.AIProvider {
	case llm.ProviderOpenAI:
		out.BaseURL = cfg.OpenAIBaseURL
	case llm.ProviderAzure:
		out.AzureEndpoint = cfg.AzureEndpoint
		out.AzureAPIVersion = cfg.AzureAPIVersion
		out.AzureDeployment = cfg.AzureDeployment
	}
	return out
}

// NewPipeline wires the model invoker, prompts and image encoder into a grading pipeline.
func NewPipeline(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*grading.Pipeline, error) {
	invoker, err := llm.New(ctx, LLMConfig(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("create %s invoker: %w", cfg.AIProvider, err)
	}

	prompts, err := prompt.NewBuilder(cfg.PromptDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	return grading.NewPipeline(invoker, prompts, imageref.NewEncoder(logger), Settings(cfg), logger), nil
}
