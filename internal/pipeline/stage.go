// Package pipeline implements the staged planning workflow: the stage table,
// per-task state, the task registry, the stage executor and the controller
// that drives tasks through human approval.
package pipeline

import (
	"fmt"
	"strings"
)

// Stage identifies one step of the planning pipeline.
type Stage int

const (
	StageProjectManager Stage = iota
	StageArchitect
	StageSecurity
	StageTester
	StageReviewer

	// StageComplete is the terminal cursor value once the last stage is approved.
	StageComplete
)

// CompleteSentinel is the wire name of StageComplete.
const CompleteSentinel = "complete"

// stageSpec is one row of the stage table.
type stageSpec struct {
	id           string
	title        string
	section      string // heading in the consolidated plan
	contextLabel string // label used when this stage's output feeds a later prompt
	dependsOn    []Stage
	format       Formatter
}

// stageTable drives every per-stage decision. Order is the execution order.
var stageTable = [...]stageSpec{
	StageProjectManager: {
		id:           "project_manager",
		title:        "Project Manager",
		section:      "1. Project Management Specification",
		contextLabel: "Project Specification",
		format:       FormatProjectSpec,
	},
	StageArchitect: {
		id:           "architect",
		title:        "Architect",
		section:      "2. Architecture Design",
		contextLabel: "Architecture",
		dependsOn:    []Stage{StageProjectManager},
	},
	StageSecurity: {
		id:           "security",
		title:        "Security",
		section:      "3. Security Analysis",
		contextLabel: "Security Analysis",
		dependsOn:    []Stage{StageArchitect},
	},
	StageTester: {
		id:           "tester",
		title:        "Tester",
		section:      "4. Testing Plan",
		contextLabel: "Testing Plan",
		dependsOn:    []Stage{StageArchitect, StageSecurity},
	},
	StageReviewer: {
		id:           "reviewer",
		title:        "Reviewer",
		section:      "5. Final Review and Implementation Plan",
		contextLabel: "Review",
		dependsOn:    []Stage{StageProjectManager, StageArchitect, StageSecurity, StageTester},
	},
}

// Sequence returns the ordered stage sequence.
func Sequence() []Stage {
	seq := make([]Stage, len(stageTable))
	for i := range stageTable {
		seq[i] = Stage(i)
	}
	return seq
}

// First returns the first stage of the sequence.
func First() Stage { return StageProjectManager }

// Valid reports whether s is a pipeline stage (StageComplete is not).
func (s Stage) Valid() bool {
	return s >= 0 && int(s) < len(stageTable)
}

func (s Stage) String() string {
	if s == StageComplete {
		return CompleteSentinel
	}
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageTable[s].id
}

// Title is the human-readable stage name.
func (s Stage) Title() string {
	if !s.Valid() {
		return s.String()
	}
	return stageTable[s].title
}

// Section is the heading this stage gets in the consolidated plan.
func (s Stage) Section() string {
	if !s.Valid() {
		return ""
	}
	return stageTable[s].section
}

// ContextLabel is how this stage's output is introduced to downstream prompts.
func (s Stage) ContextLabel() string {
	if !s.Valid() {
		return ""
	}
	return stageTable[s].contextLabel
}

// Dependencies returns the upstream stages whose outputs feed this stage.
func (s Stage) Dependencies() []Stage {
	if !s.Valid() {
		return nil
	}
	deps := make([]Stage, len(stageTable[s].dependsOn))
	copy(deps, stageTable[s].dependsOn)
	return deps
}

// Next returns the successor of s, or false if s is the last stage.
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || int(s)+1 >= len(stageTable) {
		return StageComplete, false
	}
	return s + 1, true
}

// formatter returns the post-processing step for this stage's raw output.
func (s Stage) formatter() Formatter {
	if !s.Valid() || stageTable[s].format == nil {
		return FormatPlain
	}
	return stageTable[s].format
}

// ParseStage resolves a stage name. The terminal sentinel is not a stage.
func ParseStage(name string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, spec := range stageTable {
		if spec.id == key {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStage, name)
}

// parseCursor is ParseStage plus the terminal sentinel.
func parseCursor(name string) (Stage, error) {
	if name == CompleteSentinel {
		return StageComplete, nil
	}
	return ParseStage(name)
}

// MarshalText encodes the stage by name so maps keyed by Stage serialize as
// {"project_manager": ...}.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() && s != StageComplete {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name, accepting the terminal sentinel.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := parseCursor(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StageInfo describes one stage for listings.
type StageInfo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Section      string   `json:"section"`
	Dependencies []string `json:"dependencies"`
}

// Describe returns the stage table in sequence order.
func Describe() []StageInfo {
	infos := make([]StageInfo, 0, len(stageTable))
	for _, s := range Sequence() {
		deps := make([]string, 0, len(stageTable[s].dependsOn))
		for _, d := range stageTable[s].dependsOn {
			deps = append(deps, d.String())
		}
		infos = append(infos, StageInfo{
			ID:           s.String(),
			Title:        s.Title(),
			Section:      s.Section(),
			Dependencies: deps,
		})
	}
	return infos
}
