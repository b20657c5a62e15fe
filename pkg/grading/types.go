package grading

import (
	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

// Variant names a grading flow.
type Variant string

const (
	VariantText    Variant = "text"
	VariantMath    Variant = "math"
	VariantDiagram Variant = "diagram"
)

// Shape describes how the two stages map onto model round trips.
type Shape int

const (
	// ShapeSequential extracts text from the image, then grades the text.
	ShapeSequential Shape = iota
	// ShapeCombined grades the submission against a reference image in one request.
	ShapeCombined
)

type variantSpec struct {
	shape      Shape
	extraction prompt.Extraction
	refinable  bool
}

var variants = map[Variant]variantSpec{
	VariantText:    {shape: ShapeSequential, extraction: prompt.ExtractText},
	VariantMath:    {shape: ShapeSequential, extraction: prompt.ExtractMath, refinable: true},
	VariantDiagram: {shape: ShapeCombined},
}

// ParseVariant maps a name to a known variant.
func ParseVariant(name string) (Variant, bool) {
	v := Variant(name)
	_, ok := variants[v]
	return v, ok
}

// ShapeOf reports the shape used by a variant.
func ShapeOf(v Variant) Shape {
	return variants[v].shape
}

// State is a step of a single evaluation run.
type State string

const (
	StateStart           State = "START"
	StateStage1Requested State = "STAGE1_REQUESTED"
	StateStage1Done      State = "STAGE1_DONE"
	StateStage2Requested State = "STAGE2_REQUESTED"
	StateStage2Done      State = "STAGE2_DONE"
	StateFailed          State = "FAILED"
)

// EvaluationContext is the assignment metadata a submission is graded against.
type EvaluationContext struct {
	Question   string
	GradeLevel string
	MaxMarks   float64
	Reference  imageref.Source
	Notes      string
}

// Submission is one student answer to grade.
type Submission struct {
	Variant Variant
	Answer  imageref.Source
	Context EvaluationContext
}

// Result is the canonical grading output.
type Result struct {
	Score               float64  `json:"score"`
	Feedback            []string `json:"feedback"`
	AreaOfImprovement   []string `json:"area_of_improvement"`
	ScholarlyReferences []string `json:"scholarly_references"`
}

// Outcome is a successful run.
type Outcome struct {
	Result Result
	// Stage1Text is the raw stage-1 transcription; empty for the combined shape.
	Stage1Text string
	// RefinedText is set when a math transcription was refined before grading.
	RefinedText string
	State       State
	Transitions []State
}
