package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "gema",
	Subsystem: "grading",
	Name:      "stage_duration_seconds",
	Help:      "Duration of each grading stage",
	Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
}, []string{"variant", "stage"})

// Params bounds a single model call.
type Params struct {
	MaxTokens   int
	Temperature float32
}

// Settings tunes the pipeline's model calls.
type Settings struct {
	Extraction Params
	Refinement Params
	Formatting Params
	Evaluation Params
	Detail     string
	RefineMath bool
	// ReferenceImage is used for diagram submissions that do not name their own reference.
	ReferenceImage string
}

// DefaultSettings mirrors the budgets the grading prompts were tuned with.
func DefaultSettings() Settings {
	return Settings{
		Extraction: Params{MaxTokens: 2000, Temperature: 0.1},
		Refinement: Params{MaxTokens: 2500, Temperature: 0.05},
		Formatting: Params{MaxTokens: 3000, Temperature: 0.2},
		Evaluation: Params{MaxTokens: 3000, Temperature: 0.2},
		Detail:     llm.DetailHigh,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Extraction.MaxTokens <= 0 {
		s.Extraction = d.Extraction
	}
	if s.Refinement.MaxTokens <= 0 {
		s.Refinement = d.Refinement
	}
	if s.Formatting.MaxTokens <= 0 {
		s.Formatting = d.Formatting
	}
	if s.Evaluation.MaxTokens <= 0 {
		s.Evaluation = d.Evaluation
	}
	if s.Detail == "" {
		s.Detail = d.Detail
	}
	return s
}

// Pipeline runs two-stage evaluations against a model.
type Pipeline struct {
	invoker  llm.Invoker
	prompts  *prompt.Builder
	encoder  *imageref.Encoder
	settings Settings
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewPipeline wires a pipeline. Zero-valued settings fall back to DefaultSettings.
func NewPipeline(invoker llm.Invoker, prompts *prompt.Builder, encoder *imageref.Encoder, settings Settings, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		invoker:  invoker,
		prompts:  prompts,
		encoder:  encoder,
		settings: settings.withDefaults(),
		logger:   logger.With().Str("component", "grading_pipeline").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-grader-api/pkg/grading"),
	}
}

type run struct {
	variant     Variant
	state       State
	transitions []State
	logger      zerolog.Logger
	span        trace.Span
}

func (r *run) to(state State) {
	r.state = state
	r.transitions = append(r.transitions, state)
	r.logger.Debug().Str("state", string(state)).Msg("grading state changed")
}

func (r *run) fail(err error) (Outcome, error) {
	kind := classify(err)
	failedAt := r.state
	r.to(StateFailed)
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, string(kind))
	r.logger.Warn().Err(err).Str("kind", string(kind)).Str("failed_at", string(failedAt)).Msg("grading failed")
	return Outcome{State: StateFailed, Transitions: r.transitions}, &Error{Kind: kind, State: failedAt, Err: err}
}

func (r *run) outcome(result Result, stage1, refined string) Outcome {
	return Outcome{
		Result:      result,
		Stage1Text:  stage1,
		RefinedText: refined,
		State:       r.state,
		Transitions: r.transitions,
	}
}

// Run grades one submission. Failures are returned as *Error carrying the failure kind and state.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "grading.run", trace.WithAttributes(
		attribute.String("variant", string(sub.Variant)),
	))
	defer span.End()

	r := &run{
		variant:     sub.Variant,
		state:       StateStart,
		transitions: []State{StateStart},
		logger:      p.logger.With().Str("variant", string(sub.Variant)).Logger(),
		span:        span,
	}

	spec, ok := variants[sub.Variant]
	if !ok {
		return r.fail(fmt.Errorf("%w: %q", ErrUnknownVariant, sub.Variant))
	}

	fields := prompt.Fields{
		Question:   sub.Context.Question,
		GradeLevel: sub.Context.GradeLevel,
		MaxMarks:   sub.Context.MaxMarks,
		Notes:      sub.Context.Notes,
	}
	if err := prompt.RequireContext(fields); err != nil {
		return r.fail(err)
	}
	if sub.Answer.IsZero() {
		return r.fail(&prompt.MissingContextError{Field: "path"})
	}

	if spec.shape == ShapeCombined {
		return p.runCombined(ctx, r, sub, fields)
	}
	return p.runSequential(ctx, r, sub, spec, fields)
}

func (p *Pipeline) runSequential(ctx context.Context, r *run, sub Submission, spec variantSpec, fields prompt.Fields) (Outcome, error) {
	answer, err := p.encoder.Encode(sub.Answer)
	if err != nil {
		return r.fail(err)
	}

	instruction, err := p.prompts.Extraction(spec.extraction)
	if err != nil {
		return r.fail(err)
	}

	r.to(StateStage1Requested)
	stage1, err := p.complete(ctx, r, "stage1", llm.Request{
		Instruction: instruction,
		Images:      []imageref.Image{answer},
		MaxTokens:   p.settings.Extraction.MaxTokens,
		Temperature: p.settings.Extraction.Temperature,
		Detail:      p.settings.Detail,
	})
	if err != nil {
		return r.fail(err)
	}
	r.to(StateStage1Done)

	content := stage1
	refined := ""
	if spec.refinable && p.settings.RefineMath {
		refined, err = p.refine(ctx, r, stage1, answer, p.settings.Detail)
		if err != nil {
			return r.fail(err)
		}
		content = refined
	}

	fields.Content = content
	evaluation, err := p.prompts.Evaluation(fields)
	if err != nil {
		return r.fail(err)
	}

	r.to(StateStage2Requested)
	reply, err := p.complete(ctx, r, "stage2", llm.Request{
		Instruction: evaluation,
		MaxTokens:   p.settings.Evaluation.MaxTokens,
		Temperature: p.settings.Evaluation.Temperature,
	})
	if err != nil {
		return r.fail(err)
	}

	result, err := p.decode(r, reply, fields.MaxMarks)
	if err != nil {
		return r.fail(err)
	}
	r.to(StateStage2Done)

	return r.outcome(result, stage1, refined), nil
}

// runCombined folds both stages into one request carrying the answer and the reference image.
func (p *Pipeline) runCombined(ctx context.Context, r *run, sub Submission, fields prompt.Fields) (Outcome, error) {
	reference := sub.Context.Reference
	if reference.IsZero() {
		reference = imageref.Parse(p.settings.ReferenceImage)
	}
	if reference.IsZero() {
		return r.fail(&prompt.MissingContextError{Field: "expected_output_path"})
	}

	answer, err := p.encoder.Encode(sub.Answer)
	if err != nil {
		return r.fail(err)
	}
	expected, err := p.encoder.Encode(reference)
	if err != nil {
		return r.fail(err)
	}

	instruction, err := p.prompts.Comparison(fields)
	if err != nil {
		return r.fail(err)
	}

	r.to(StateStage2Requested)
	reply, err := p.complete(ctx, r, "combined", llm.Request{
		Instruction: instruction,
		Images:      []imageref.Image{answer, expected},
		MaxTokens:   p.settings.Evaluation.MaxTokens,
		Temperature: p.settings.Evaluation.Temperature,
		Detail:      llm.DetailHigh,
	})
	if err != nil {
		return r.fail(err)
	}

	result, err := p.decode(r, reply, fields.MaxMarks)
	if err != nil {
		return r.fail(err)
	}
	r.to(StateStage2Done)

	return r.outcome(result, "", ""), nil
}

func (p *Pipeline) refine(ctx context.Context, r *run, transcript string, image imageref.Image, detail string) (string, error) {
	instruction, err := p.prompts.Refinement(transcript)
	if err != nil {
		return "", err
	}
	return p.complete(ctx, r, "refine", llm.Request{
		Instruction: instruction,
		Images:      []imageref.Image{image},
		MaxTokens:   p.settings.Refinement.MaxTokens,
		Temperature: p.settings.Refinement.Temperature,
		Detail:      detail,
	})
}

func (p *Pipeline) complete(ctx context.Context, r *run, stage string, req llm.Request) (string, error) {
	ctx, span := p.tracer.Start(ctx, "grading."+stage)
	defer span.End()

	start := time.Now()
	text, err := p.invoker.Complete(ctx, req)
	stageDuration.WithLabelValues(string(r.variant), stage).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	return text, nil
}

func (p *Pipeline) decode(r *run, reply string, maxMarks float64) (Result, error) {
	result, clamped, err := decodeResult(reply, maxMarks)
	if err != nil {
		return Result{}, err
	}
	if clamped {
		r.logger.Warn().Float64("max_marks", maxMarks).Float64("score", result.Score).Msg("model score out of range, clamped")
	}
	return result, nil
}
