package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJournal struct {
	mu    sync.Mutex
	saved []*TaskState
}

func (j *recordingJournal) Save(s *TaskState) {
	j.mu.Lock()
	j.saved = append(j.saved, s)
	j.mu.Unlock()
}

func (j *recordingJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.saved)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("task-%03d", n)
	}
}

func TestRegistryCreateAndGet(t *testing.T) {
	j := &recordingJournal{}
	reg := NewRegistry(WithJournal(j), WithIDGenerator(sequentialIDs()), WithRegistryClock(func() time.Time { return testNow }))

	id, err := reg.Create("  design a cache  ")
	require.NoError(t, err)
	assert.Equal(t, "task-001", id)

	st, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "design a cache", st.Problem)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, 1, j.count())
}

func TestRegistryCreateRequiresProblem(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create("   ")
	assert.ErrorIs(t, err, ErrMissingProblem)
	assert.Empty(t, reg.List())
}

func TestRegistryGetUnknown(t *testing.T) {
	_, err := NewRegistry().Get("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRegistryGetReturnsSnapshot(t *testing.T) {
	reg := NewRegistry()
	id, err := reg.Create("p")
	require.NoError(t, err)

	st, _ := reg.Get(id)
	st.Outputs[StageProjectManager] = "tampered"

	again, _ := reg.Get(id)
	assert.Empty(t, again.Outputs)
}

func TestRegistryMutateFailureLeavesStateUntouched(t *testing.T) {
	j := &recordingJournal{}
	reg := NewRegistry(WithJournal(j))
	id, _ := reg.Create("p")

	_, err := reg.Mutate(id, func(s *TaskState) error {
		s.Progress = 50
		s.Outputs[StageProjectManager] = "partial"
		return errors.New("nope")
	})
	require.Error(t, err)

	st, _ := reg.Get(id)
	assert.Zero(t, st.Progress)
	assert.Empty(t, st.Outputs)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, 1, j.count())
}

func TestRegistryMutateBumpsVersion(t *testing.T) {
	reg := NewRegistry()
	id, _ := reg.Create("p")

	snap, err := reg.Mutate(id, func(s *TaskState) error {
		s.Progress = 5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, 5, snap.Progress)
}

func TestRegistryConcurrentMutations(t *testing.T) {
	reg := NewRegistry()
	id, _ := reg.Create("p")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Mutate(id, func(s *TaskState) error {
				s.RevisionCount[StageArchitect]++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, _ := reg.Get(id)
	assert.Equal(t, 50, st.RevisionCount[StageArchitect])
	assert.Equal(t, int64(51), st.Version)
}

func TestRegistryListAndPrefix(t *testing.T) {
	clock := testNow
	reg := NewRegistry(
		WithIDGenerator(sequentialIDs()),
		WithRegistryClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
	)
	for i := 0; i < 3; i++ {
		_, err := reg.Create(fmt.Sprintf("problem %d", i))
		require.NoError(t, err)
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "problem 0", list[0].Problem)
	assert.Equal(t, "problem 2", list[2].Problem)

	assert.Equal(t, []string{"task-001", "task-002", "task-003"}, reg.FindIDsByPrefix("task-00"))
	assert.Equal(t, []string{"task-002"}, reg.FindIDsByPrefix("task-002"))
	assert.Empty(t, reg.FindIDsByPrefix("x"))
}

func TestRegistryRestore(t *testing.T) {
	reg := NewRegistry()
	st := NewTaskState("restored", "p", testNow)
	st.Version = 7
	require.NoError(t, reg.Restore(st))

	got, err := reg.Get("restored")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Version)

	assert.Error(t, reg.Restore(&TaskState{}))
}
