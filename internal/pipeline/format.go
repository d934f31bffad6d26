package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/psychon7/Triage-AI/internal/utils"
)

// Formatter post-processes the raw text returned by generation.
// Formatters never fail: when the text does not have the expected shape
// they return it unchanged.
type Formatter func(raw string) string

// FormatPlain trims surrounding whitespace.
func FormatPlain(raw string) string {
	return strings.TrimSpace(raw)
}

// ProjectSpec is the structured shape requested from the project manager stage.
type ProjectSpec struct {
	ProjectName             string              `json:"project_name"`
	ExecutiveSummary        string              `json:"executive_summary"`
	Requirements            []string            `json:"requirements"`
	Features                map[string][]string `json:"features"`
	Scope                   ProjectScope        `json:"scope"`
	Milestones              []Milestone         `json:"milestones"`
	TechnicalConsiderations []string            `json:"technical_considerations"`
	Challenges              []string            `json:"challenges"`
	SuccessCriteria         []string            `json:"success_criteria"`
}

// ProjectScope lists what is in and out of scope.
type ProjectScope struct {
	Inclusions []string `json:"inclusions"`
	Exclusions []string `json:"exclusions"`
}

// Milestone is one named delivery checkpoint.
type Milestone struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FormatProjectSpec renders a JSON project specification as markdown.
func FormatProjectSpec(raw string) string {
	spec, err := utils.ExtractJSON[ProjectSpec](raw)
	if err != nil || (spec.ProjectName == "" && spec.ExecutiveSummary == "") {
		return FormatPlain(raw)
	}
	return spec.Markdown()
}

// Markdown renders the specification.
func (p ProjectSpec) Markdown() string {
	var b strings.Builder

	name := p.ProjectName
	if name == "" {
		name = "Project Specification"
	}
	fmt.Fprintf(&b, "# %s\n\n", name)

	b.WriteString("## Executive Summary\n")
	b.WriteString(p.ExecutiveSummary)
	b.WriteString("\n\n## Requirements\n")
	for i, req := range p.Requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, req)
	}

	b.WriteString("\n## Features\n")
	categories := make([]string, 0, len(p.Features))
	for cat := range p.Features {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		fmt.Fprintf(&b, "### %s\n", cat)
		writeBullets(&b, p.Features[cat])
	}

	b.WriteString("\n## Scope\n### Inclusions\n")
	writeBullets(&b, p.Scope.Inclusions)
	b.WriteString("### Exclusions\n")
	writeBullets(&b, p.Scope.Exclusions)

	b.WriteString("\n## Milestones\n")
	for _, ms := range p.Milestones {
		msName := ms.Name
		if msName == "" {
			msName = "Unnamed"
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", msName, ms.Description)
	}

	b.WriteString("\n## Technical Considerations\n")
	writeBullets(&b, p.TechnicalConsiderations)
	b.WriteString("\n## Challenges and Mitigations\n")
	writeBullets(&b, p.Challenges)
	b.WriteString("\n## Success Criteria\n")
	writeBullets(&b, p.SuccessCriteria)

	return strings.TrimRight(b.String(), "\n")
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
