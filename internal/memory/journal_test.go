package memory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

func TestJournalPersistsRegistryMutations(t *testing.T) {
	s := newTestStore(t)
	j := NewJournal(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg := pipeline.NewRegistry(pipeline.WithJournal(j))

	id, err := reg.Create("Build a todo app")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := reg.Mutate(id, func(st *pipeline.TaskState) error {
			st.Progress += 5
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, j.Close(context.Background()))

	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Version)
	assert.Equal(t, 25, got.Progress)
}

func TestJournalWritesSynchronouslyAfterClose(t *testing.T) {
	s := newTestStore(t)
	j := NewJournal(s, nil)
	require.NoError(t, j.Close(context.Background()))

	j.Save(newState("late", 1, testNow))
	_, err := s.Get(context.Background(), "late")
	assert.NoError(t, err)
}

func TestRestoreFromStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	running := newState("running", 3, testNow)
	running.StageStatus[pipeline.StageProjectManager] = pipeline.StatusInProgress
	running.RunID = "lost"
	require.NoError(t, s.Upsert(ctx, running))

	states, err := s.LoadAll(ctx)
	require.NoError(t, err)

	reg := pipeline.NewRegistry()
	n, err := pipeline.RestoreInterrupted(reg, states, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := reg.Get("running")
	require.NoError(t, err)
	assert.True(t, st.Paused)
	assert.Equal(t, pipeline.InterruptedReason, st.PauseReason)
}
