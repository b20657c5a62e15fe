package grading

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

// TranscribeOptions controls the optional passes after the initial transcription.
type TranscribeOptions struct {
	Refine         bool
	Format         bool
	ProblemContext string
	Detail         string
}

// Transcription holds the output of each pass that ran.
type Transcription struct {
	Initial   string `json:"initial"`
	Refined   string `json:"refined,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// Final returns the output of the last pass that ran.
func (t Transcription) Final() string {
	switch {
	case t.Formatted != "":
		return t.Formatted
	case t.Refined != "":
		return t.Refined
	default:
		return t.Initial
	}
}

// Transcribe reads handwritten mathematics from an image: a literal pass, an optional
// correction pass against the image, and an optional typesetting pass over the text.
func (p *Pipeline) Transcribe(ctx context.Context, src imageref.Source, opts TranscribeOptions) (Transcription, error) {
	ctx, span := p.tracer.Start(ctx, "grading.transcribe", trace.WithAttributes(
		attribute.Bool("refine", opts.Refine),
		attribute.Bool("format", opts.Format),
	))
	defer span.End()

	r := &run{
		variant:     VariantMath,
		state:       StateStart,
		transitions: []State{StateStart},
		logger:      p.logger.With().Str("operation", "transcribe").Logger(),
		span:        span,
	}

	detail := opts.Detail
	if detail == "" {
		detail = p.settings.Detail
	}

	if src.IsZero() {
		_, err := r.fail(&prompt.MissingContextError{Field: "path"})
		return Transcription{}, err
	}

	image, err := p.encoder.Encode(src)
	if err != nil {
		_, err = r.fail(err)
		return Transcription{}, err
	}

	instruction, err := p.prompts.Extraction(prompt.ExtractMath)
	if err != nil {
		_, err = r.fail(err)
		return Transcription{}, err
	}

	r.to(StateStage1Requested)
	initial, err := p.complete(ctx, r, "transcribe", llm.Request{
		Instruction: instruction,
		Images:      []imageref.Image{image},
		MaxTokens:   p.settings.Extraction.MaxTokens,
		Temperature: p.settings.Extraction.Temperature,
		Detail:      detail,
	})
	if err != nil {
		_, err = r.fail(err)
		return Transcription{}, err
	}
	r.to(StateStage1Done)

	out := Transcription{Initial: initial}
	current := initial

	if opts.Refine {
		out.Refined, err = p.refine(ctx, r, current, image, detail)
		if err != nil {
			_, err = r.fail(err)
			return Transcription{}, err
		}
		current = out.Refined
	}

	if opts.Format {
		system, user, err := p.prompts.Formatting(current, opts.ProblemContext)
		if err != nil {
			_, err = r.fail(err)
			return Transcription{}, err
		}
		r.to(StateStage2Requested)
		out.Formatted, err = p.complete(ctx, r, "format", llm.Request{
			System:      system,
			Instruction: user,
			MaxTokens:   p.settings.Formatting.MaxTokens,
			Temperature: p.settings.Formatting.Temperature,
		})
		if err != nil {
			_, err = r.fail(err)
			return Transcription{}, err
		}
		r.to(StateStage2Done)
	}

	return out, nil
}
