package mcp

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

const recentLogEntries = 5

// FormatSubmit renders a submission acknowledgement.
func FormatSubmit(res approval.SubmitResult) string {
	var sb strings.Builder
	sb.WriteString("## Task Submitted\n\n")
	sb.WriteString(res.Message)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("**Task ID**: `%s`\n", res.TaskID))
	sb.WriteString(fmt.Sprintf("**Submitted**: %s\n\n", res.SubmittedAt.UTC().Format(time.RFC3339)))
	sb.WriteString("The project manager stage is running. Poll with `triage_status`.")
	return sb.String()
}

// FormatStatus renders a task snapshot: stage table, progress and recent log.
func FormatStatus(st *pipeline.TaskState) string {
	if st == nil {
		return "No task information."
	}
	title := cases.Title(language.English)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Task `%s`: %s\n\n", st.ID, title.String(st.Phase())))
	sb.WriteString(fmt.Sprintf("**Problem**: %s\n", truncate(st.Problem, 200)))
	if st.Complete {
		sb.WriteString("**Current stage**: complete\n")
	} else {
		sb.WriteString(fmt.Sprintf("**Current stage**: %s\n", st.CurrentStage.Title()))
	}
	sb.WriteString(fmt.Sprintf("**Progress**: %d%%\n", st.Progress))
	if st.AwaitingUserApproval {
		sb.WriteString(fmt.Sprintf("**Action needed**: review `%s` output, then call `triage_decide`\n", st.CurrentStage))
	}
	if st.Paused && st.PauseReason != "" {
		sb.WriteString(fmt.Sprintf("**Paused**: %s\n", st.PauseReason))
	}
	if st.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error**: %s\n", st.Error))
	}

	sb.WriteString("\n| Stage | Status | Revisions |\n|---|---|---|\n")
	for _, s := range st.StageSequence {
		status := strings.ReplaceAll(string(st.Status(s)), "_", " ")
		sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", s.Title(), status, st.RevisionCount[s]))
	}

	if n := len(st.Log); n > 0 {
		sb.WriteString("\n### Recent Activity\n")
		start := max(0, n-recentLogEntries)
		for _, entry := range st.Log[start:] {
			sb.WriteString(fmt.Sprintf("- %s %s\n", entry.At.UTC().Format("15:04:05"), entry.Message))
		}
	}
	return strings.TrimSpace(sb.String())
}

// FormatStageOutput renders the latest output of one stage.
func FormatStageOutput(taskID string, out approval.StageOutput) string {
	stage, err := pipeline.ParseStage(out.Stage)
	name := out.Stage
	if err == nil {
		name = stage.Title()
	}
	if out.Output == nil {
		return fmt.Sprintf("## %s Output\n\nNo output yet for task `%s`.", name, taskID)
	}
	return fmt.Sprintf("## %s Output\n\n%s", name, strings.TrimSpace(*out.Output))
}

// FormatDecision renders an approve or reject acknowledgement.
func FormatDecision(res approval.DecisionResult) string {
	return fmt.Sprintf("## Decision Recorded\n\n%s\n\n**Task ID**: `%s`\n**Stage**: %s", res.Message, res.TaskID, res.Stage)
}

// FormatPause renders a pause acknowledgement.
func FormatPause(res approval.PauseResult) string {
	return fmt.Sprintf("## Task Paused\n\n%s\n\n**Task ID**: `%s`\n**Paused at**: %s",
		res.Message, res.TaskID, res.PausedAt.UTC().Format(time.RFC3339))
}

// FormatResume renders a resume acknowledgement.
func FormatResume(res approval.ResumeResult) string {
	return fmt.Sprintf("## Task Resumed\n\n%s\n\n**Task ID**: `%s`\n**Current stage**: %s", res.Message, res.TaskID, res.CurrentStage)
}

// FormatFinalResult renders the consolidated plan, flagging partial results.
func FormatFinalResult(taskID string, res approval.FinalResult) string {
	var sb strings.Builder
	if res.Error != nil {
		sb.WriteString(fmt.Sprintf("> Task `%s` failed: %s\n\n", taskID, *res.Error))
	} else if !res.Complete {
		sb.WriteString(fmt.Sprintf("> Task `%s` is still in progress; this plan is partial.\n\n", taskID))
	}
	sb.WriteString(strings.TrimSpace(res.Result))
	return sb.String()
}

// FormatError returns a Markdown error message.
func FormatError(message string) string {
	return fmt.Sprintf("## Error\n\n**Details**: %s", message)
}

// FormatValidationError returns a Markdown error for validation failures.
func FormatValidationError(field, message string) string {
	return fmt.Sprintf("## Validation Error\n\n**Field**: `%s`\n**Details**: %s", field, message)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
