package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

func TestFormatStatusCompleteAndFailed(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	st := pipeline.NewTaskState("t-1", "Plan a CLI", now)
	st.Complete = true
	st.CurrentStage = pipeline.StageComplete

	out := FormatStatus(st)
	assert.Contains(t, out, ": Complete")
	assert.Contains(t, out, "**Current stage**: complete")

	st.Error = "generation failed: timeout"
	out = FormatStatus(st)
	assert.Contains(t, out, ": Failed")
	assert.Contains(t, out, "**Error**: generation failed: timeout")
}

func TestFormatStatusNil(t *testing.T) {
	assert.Equal(t, "No task information.", FormatStatus(nil))
}

func TestFormatFinalResult(t *testing.T) {
	msg := "boom"
	tests := []struct {
		name string
		res  approval.FinalResult
		want string
	}{
		{"complete", approval.FinalResult{Result: "# Plan", Complete: true}, "# Plan"},
		{"partial", approval.FinalResult{Result: "# Plan"}, "> Task `t` is still in progress; this plan is partial.\n\n# Plan"},
		{"failed", approval.FinalResult{Result: "# Plan", Complete: true, Error: &msg}, "> Task `t` failed: boom\n\n# Plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFinalResult("t", tt.res))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, strings.Repeat("é", 3)+"...", truncate(strings.Repeat("é", 5), 3))
}
