package ui

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/psychon7/Triage-AI/internal/pipeline"
	"github.com/psychon7/Triage-AI/internal/util"
)

const statusLogLines = 8

// RenderTaskStatus renders one task: header, per-stage status and recent log.
func RenderTaskStatus(st *pipeline.TaskState) string {
	if st == nil {
		return ""
	}
	title := cases.Title(language.English)
	phase := st.Phase()

	var sb strings.Builder
	sb.WriteString(StyleHeader.Render("Task "+st.ID) + " " + PhaseStyle(phase).Render(title.String(phase)) + "\n")
	sb.WriteString(StyleSubtle.Render("Problem: ") + StyleText.Render(Truncate(st.Problem, 100)) + "\n")
	sb.WriteString(StyleSubtle.Render(fmt.Sprintf("Progress: %d%%  Updated: %s", st.Progress, st.UpdatedAt.Local().Format(time.DateTime))) + "\n\n")

	for _, s := range st.StageSequence {
		status := st.Status(s)
		icon, style := StatusIcon(status)
		line := fmt.Sprintf(" %s %-16s %s", Icon(icon, style), s.Title(), style.Render(strings.ReplaceAll(string(status), "_", " ")))
		if n := st.RevisionCount[s]; n > 0 {
			line += StyleSubtle.Render(fmt.Sprintf("  (%d revisions)", n))
		}
		if s == st.CurrentStage && st.AwaitingUserApproval {
			line += StyleWarning.Render("  ← awaiting your decision")
		}
		sb.WriteString(line + "\n")
	}

	if st.Paused {
		sb.WriteString("\n" + StyleWarning.Render("Paused: "+st.PauseReason) + "\n")
	}
	if st.Error != "" {
		sb.WriteString("\n" + StyleError.Render("Error: "+st.Error) + "\n")
	}

	if n := len(st.Log); n > 0 {
		sb.WriteString("\n" + StyleSectionTitle.Render("Activity") + "\n")
		for _, entry := range st.Log[max(0, n-statusLogLines):] {
			sb.WriteString(StyleSubtle.Render(entry.At.Local().Format(time.TimeOnly)) + " " + entry.Message + "\n")
		}
	}
	return sb.String()
}

// RenderTaskList renders task summaries as a table.
func RenderTaskList(tasks []pipeline.Summary) string {
	if len(tasks) == 0 {
		return StyleSubtle.Render("No tasks yet.") + "\n"
	}
	t := &Table{Headers: []string{"ID", "Status", "Stage", "Progress", "Problem"}, MaxWidth: 48}
	for _, s := range tasks {
		stage := s.CurrentStage.Title()
		if s.Complete {
			stage = "-"
		}
		t.Rows = append(t.Rows, []string{
			util.ShortID(s.ID, 0),
			s.Status,
			stage,
			fmt.Sprintf("%d%%", s.Progress),
			strings.Join(strings.Fields(s.Problem), " "),
		})
	}
	return t.Render()
}

// RenderStages renders the stage table.
func RenderStages(infos []pipeline.StageInfo) string {
	t := &Table{Headers: []string{"#", "Stage", "ID", "Depends on"}}
	for i, info := range infos {
		deps := strings.Join(info.Dependencies, ", ")
		if deps == "" {
			deps = "-"
		}
		t.Rows = append(t.Rows, []string{fmt.Sprint(i + 1), info.Title, info.ID, deps})
	}
	return t.Render()
}
