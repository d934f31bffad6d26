package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// Decision is the operator's answer to a stage awaiting approval.
type Decision int

const (
	DecisionApprove Decision = iota
	DecisionReject
	DecisionPause
	DecisionQuit
)

var decisionItems = []string{
	"Approve and continue",
	"Reject with feedback",
	"Pause",
	"Quit (task stays where it is)",
}

// PromptDecision asks how to proceed with stage's output. Feedback is
// returned only for DecisionReject.
func PromptDecision(stage pipeline.Stage) (Decision, string, error) {
	sel := promptui.Select{
		Label: fmt.Sprintf("Review %s output", stage.Title()),
		Items: decisionItems,
	}
	idx, _, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return DecisionQuit, "", nil
		}
		return DecisionQuit, "", err
	}

	d := Decision(idx)
	if d != DecisionReject {
		return d, "", nil
	}

	feedback, err := PromptText("Feedback for the "+stage.Title(), true)
	if err != nil {
		return DecisionQuit, "", err
	}
	return DecisionReject, feedback, nil
}

// PromptText reads one line of text.
func PromptText(label string, required bool) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Validate: validateText(required),
	}
	s, err := p.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func validateText(required bool) promptui.ValidateFunc {
	return func(s string) error {
		if required && strings.TrimSpace(s) == "" {
			return errors.New("a value is required")
		}
		return nil
	}
}
