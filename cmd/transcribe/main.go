// Command transcribe turns a photo of handwritten mathematics into a typeset solution.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/noah-isme/gema-grader-api/internal/bootstrap"
	"github.com/noah-isme/gema-grader-api/internal/config"
	"github.com/noah-isme/gema-grader-api/pkg/grading"
	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
)

const defaultOutput = "final_formatted_solution.txt"

type options struct {
	image   string
	output  string
	context string
	detail  string
	noFix   bool
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.image, "image", "", "path or URL of the handwritten solution image")
	fs.StringVar(&opts.output, "output", defaultOutput, "file to write the formatted solution to")
	fs.StringVar(&opts.context, "context", "", "problem statement used while typesetting")
	fs.StringVar(&opts.detail, "detail", llm.DetailHigh, "image detail: low, high or auto")
	fs.BoolVar(&opts.noFix, "no-refine", false, "skip the correction pass")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opts.image == "" && fs.NArg() > 0 {
		opts.image = fs.Arg(0)
	}
	if strings.TrimSpace(opts.image) == "" {
		return options{}, fmt.Errorf("an image is required (-image)")
	}
	switch opts.detail {
	case llm.DetailLow, llm.DetailHigh, llm.DetailAuto:
	default:
		return options{}, fmt.Errorf("invalid -detail %q", opts.detail)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build grading pipeline")
	}

	result, err := pipeline.Transcribe(ctx, imageref.Parse(opts.image), grading.TranscribeOptions{
		Refine:         !opts.noFix,
		Format:         true,
		ProblemContext: opts.context,
		Detail:         opts.detail,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("error_kind", string(grading.KindOf(err))).Msg("transcription failed")
	}

	if err := os.WriteFile(opts.output, []byte(result.Final()), 0o644); err != nil {
		logger.Fatal().Err(err).Str("output", opts.output).Msg("failed to write solution")
	}
	logger.Info().Str("output", opts.output).Msg("formatted solution written")
}
