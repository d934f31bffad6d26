package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/psychon7/Triage-AI/internal/prompts"
)

// Generator is the external text generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// PromptSource resolves the instructions for a stage ID.
type PromptSource interface {
	StagePrompt(stage string) prompts.StagePrompt
}

// Inputs is everything a stage execution depends on.
type Inputs struct {
	Problem  string
	Upstream map[Stage]string
	Feedback string
}

// Executor runs a single stage. It holds no per-task state and never touches
// the registry.
type Executor struct {
	gen     Generator
	prompts PromptSource
	logger  *slog.Logger
}

// NewExecutor creates an executor. A nil prompt source uses built-in prompts.
func NewExecutor(gen Generator, src PromptSource, logger *slog.Logger) (*Executor, error) {
	if gen == nil {
		return nil, errors.New("executor: generator is required")
	}
	if src == nil {
		src = prompts.NewLibrary(nil, "")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{gen: gen, prompts: src, logger: logger}, nil
}

// Execute builds the stage prompt, calls the generator once and formats the result.
func (e *Executor) Execute(ctx context.Context, stage Stage, in Inputs) (string, error) {
	if !stage.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidStage, stage)
	}

	prompt := e.BuildPrompt(stage, in)
	start := time.Now()
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("stage generation failed", "stage", stage.String(), "error", err)
		return "", fmt.Errorf("%w: %s: %v", ErrGenerationFailure, stage, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: %s: empty response", ErrGenerationFailure, stage)
	}

	e.logger.Debug("stage generated",
		"stage", stage.String(),
		"duration", time.Since(start).Round(time.Millisecond),
		"prompt_chars", len(prompt),
		"output_chars", len(raw))

	return stage.formatter()(raw), nil
}

// BuildPrompt composes the prompt for a stage: instructions, the problem,
// the outputs of the stage's dependencies in table order and any feedback.
func (e *Executor) BuildPrompt(stage Stage, in Inputs) string {
	p := e.prompts.StagePrompt(stage.String())

	var b strings.Builder
	if p.Role != "" {
		b.WriteString(p.Role)
		b.WriteString("\n\n")
	}
	if p.Instructions != "" {
		b.WriteString(p.Instructions)
		b.WriteString("\n\n")
	}

	b.WriteString("Problem:\n")
	b.WriteString(strings.TrimSpace(in.Problem))
	b.WriteString("\n")

	for _, dep := range stage.Dependencies() {
		out, ok := in.Upstream[dep]
		if !ok || strings.TrimSpace(out) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", dep.ContextLabel(), strings.TrimSpace(out))
	}

	if p.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nExpected output:\n%s\n", p.ExpectedOutput)
	}

	if strings.TrimSpace(in.Feedback) != "" {
		fmt.Fprintf(&b, "\nPrevious feedback: %s\n", in.Feedback)
	}

	return b.String()
}
