// Package artifact writes approved stage outputs and the consolidated plan
// to disk, one directory per task.
package artifact

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// FinalPlanFile is the name of the consolidated document inside a task directory.
const FinalPlanFile = "full_plan.md"

// Sink implements pipeline.ArtifactSink on an afero filesystem.
type Sink struct {
	fs  afero.Fs
	dir string
}

// NewSink writes under dir on fs. A nil fs means the OS filesystem.
func NewSink(fs afero.Fs, dir string) *Sink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Sink{fs: fs, dir: dir}
}

// TaskDir is the directory holding a task's artifacts.
func (s *Sink) TaskDir(taskID string) string {
	return filepath.Join(s.dir, taskID)
}

// StageOutputPath is where an approved stage output is written.
func (s *Sink) StageOutputPath(taskID string, stage pipeline.Stage) string {
	return filepath.Join(s.TaskDir(taskID), stage.String()+"_output.md")
}

// FinalPlanPath is where the consolidated plan is written.
func (s *Sink) FinalPlanPath(taskID string) string {
	return filepath.Join(s.TaskDir(taskID), FinalPlanFile)
}

// WriteStageOutput writes an approved stage output with its header.
func (s *Sink) WriteStageOutput(taskID string, stage pipeline.Stage, output string, at time.Time) error {
	return s.write(s.StageOutputPath(taskID, stage), pipeline.StageDocument(taskID, stage, output, at))
}

// WriteFinalDocument writes the consolidated plan.
func (s *Sink) WriteFinalDocument(taskID, document string) error {
	return s.write(s.FinalPlanPath(taskID), document)
}

// write replaces path atomically: temp file, then rename.
func (s *Sink) write(path, content string) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// HasFinalPlan reports whether the consolidated plan has been written.
func (s *Sink) HasFinalPlan(taskID string) bool {
	info, err := s.fs.Stat(s.FinalPlanPath(taskID))
	return err == nil && info.Mode().IsRegular()
}
