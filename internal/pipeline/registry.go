package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Journal receives every committed task snapshot. Implementations must not
// block for long; the registry calls Save outside the task lock.
type Journal interface {
	Save(snapshot *TaskState)
}

// Registry maps task IDs to task state. State is only reachable through
// snapshots (Get, List) and the per-task atomic Mutate primitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	journal Journal
	clock   func() time.Time
	newID   func() string
	logger  *slog.Logger
}

type entry struct {
	mu      sync.Mutex                // serializes mutations of one task
	current atomic.Pointer[TaskState] // last committed state, never mutated in place
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithJournal attaches a write-through journal.
func WithJournal(j Journal) RegistryOption {
	return func(r *Registry) { r.journal = j }
}

// WithRegistryClock overrides the time source.
func WithRegistryClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithIDGenerator overrides task ID generation.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		clock:   time.Now,
		newID:   uuid.NewString,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new task for problem and returns its ID.
func (r *Registry) Create(problem string) (string, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return "", ErrMissingProblem
	}

	state := NewTaskState(r.newID(), problem, r.clock())
	state.Version = 1

	e := &entry{}
	e.current.Store(state)

	r.mu.Lock()
	if _, exists := r.entries[state.ID]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("duplicate task id %s", state.ID)
	}
	r.entries[state.ID] = e
	r.mu.Unlock()

	r.persist(state)
	return state.ID, nil
}

// Restore inserts a previously persisted state, replacing any entry with the same ID.
func (r *Registry) Restore(state *TaskState) error {
	if state == nil || state.ID == "" {
		return fmt.Errorf("restore: task id is required")
	}
	e := &entry{}
	e.current.Store(state.Clone())

	r.mu.Lock()
	r.entries[state.ID] = e
	r.mu.Unlock()
	return nil
}

// Get returns a snapshot of the task's last committed state.
func (r *Registry) Get(id string) (*TaskState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.current.Load().Clone(), nil
}

// Mutate applies fn to the task under an exclusive per-task lock. fn works on
// a copy; the copy is committed only when fn returns nil, so a failed
// mutation leaves the state untouched. The committed snapshot is returned.
func (r *Registry) Mutate(id string, fn func(*TaskState) error) (*TaskState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	working := e.current.Load().Clone()
	if err := fn(working); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	working.Version++
	working.UpdatedAt = r.clock()
	e.current.Store(working)
	e.mu.Unlock()

	snapshot := working.Clone()
	r.persist(snapshot)
	return snapshot, nil
}

// List returns snapshots of every task, oldest first.
func (r *Registry) List() []*TaskState {
	r.mu.RLock()
	states := make([]*TaskState, 0, len(r.entries))
	for _, e := range r.entries {
		states = append(states, e.current.Load().Clone())
	}
	r.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		if states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].ID < states[j].ID
		}
		return states[i].CreatedAt.Before(states[j].CreatedAt)
	})
	return states
}

// FindIDsByPrefix returns the IDs starting with prefix, sorted.
func (r *Registry) FindIDsByPrefix(prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id := range r.entries {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return e, nil
}

func (r *Registry) persist(snapshot *TaskState) {
	if r.journal == nil {
		return
	}
	r.journal.Save(snapshot)
}
