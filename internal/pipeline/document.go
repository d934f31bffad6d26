package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// DocumentTimeLayout is the timestamp format used in generated documents.
const DocumentTimeLayout = "2006-01-02 15:04:05"

const documentFooter = "*This document was automatically generated by combining the outputs of all agents in the workflow.*"

// BuildDocument assembles the consolidated plan from the latest output of
// every stage, under fixed section headings.
func BuildDocument(t *TaskState, generated time.Time) string {
	var b strings.Builder

	b.WriteString("# Complete Project Plan\n")
	fmt.Fprintf(&b, "## Task ID: %s\n", t.ID)
	fmt.Fprintf(&b, "## Generated: %s\n\n", generated.Format(DocumentTimeLayout))
	b.WriteString("## Original Problem:\n")
	b.WriteString(t.Problem)
	b.WriteString("\n\n---\n\n")

	for _, s := range t.StageSequence {
		fmt.Fprintf(&b, "## %s\n", s.Section())
		out, ok := t.Outputs[s]
		if !ok || strings.TrimSpace(out) == "" {
			out = fmt.Sprintf("No %s output available", strings.ToLower(s.Title()))
		}
		b.WriteString(out)
		b.WriteString("\n\n---\n\n")
	}

	b.WriteString(documentFooter)
	b.WriteString("\n")
	return b.String()
}

// StageDocument renders one approved stage output with its header.
func StageDocument(taskID string, s Stage, output string, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Output\n", s.Title())
	fmt.Fprintf(&b, "## Task ID: %s\n", taskID)
	fmt.Fprintf(&b, "## Timestamp: %s\n", at.Format(DocumentTimeLayout))
	b.WriteString("## Status: Approved\n\n")
	b.WriteString(output)
	b.WriteString("\n")
	return b.String()
}
