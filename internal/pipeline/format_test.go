package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatProjectSpec(t *testing.T) {
	raw := `Here is the spec:
{
  "project_name": "Todo",
  "executive_summary": "A small list app.",
  "requirements": ["create items", "mark done"],
  "features": {"ui": ["list view"], "api": ["REST"]},
  "scope": {"inclusions": ["web"], "exclusions": ["mobile"]},
  "milestones": [{"name": "MVP", "description": "basic flow"}, {"description": "polish"}],
  "technical_considerations": ["sqlite"],
  "challenges": ["sync"],
  "success_criteria": ["users add items"],
}`
	out := FormatProjectSpec(raw)

	assert.Contains(t, out, "# Todo\n\n## Executive Summary\nA small list app.")
	assert.Contains(t, out, "1. create items\n2. mark done")
	assert.Contains(t, out, "### api\n- REST\n### ui\n- list view")
	assert.Contains(t, out, "### Inclusions\n- web\n### Exclusions\n- mobile")
	assert.Contains(t, out, "- **MVP**: basic flow\n- **Unnamed**: polish")
	assert.Contains(t, out, "## Success Criteria\n- users add items")
	assert.NotContains(t, out, "\n\n\n")
}

func TestFormatProjectSpecFallsBack(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain text", "  just prose  ", "just prose"},
		{"broken json", "{\"project_name\": ", "{\"project_name\":"},
		{"empty object", "{}", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProjectSpec(tt.raw))
		})
	}
}
