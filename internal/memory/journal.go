package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// Upserter is the write side of SQLiteStore.
type Upserter interface {
	Upsert(ctx context.Context, st *pipeline.TaskState) error
}

// Journal is a write-behind pipeline.Journal. Save only records the latest
// snapshot per task; a background writer flushes them to the store.
type Journal struct {
	store  Upserter
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pipeline.TaskState
	closed  bool

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewJournal starts the background writer.
func NewJournal(store Upserter, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		store:   store,
		logger:  logger,
		pending: make(map[string]*pipeline.TaskState),
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Save queues a snapshot. Snapshots saved after Close are written synchronously.
func (j *Journal) Save(st *pipeline.TaskState) {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		j.write(st)
		return
	}
	if prev, ok := j.pending[st.ID]; !ok || prev.Version < st.Version {
		j.pending[st.ID] = st
	}
	j.mu.Unlock()

	select {
	case j.notify <- struct{}{}:
	default:
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for {
		select {
		case <-j.notify:
			j.flush()
		case <-j.stop:
			j.flush()
			return
		}
	}
}

func (j *Journal) flush() {
	j.mu.Lock()
	batch := j.pending
	j.pending = make(map[string]*pipeline.TaskState)
	j.mu.Unlock()

	for _, st := range batch {
		j.write(st)
	}
}

func (j *Journal) write(st *pipeline.TaskState) {
	if err := j.store.Upsert(context.Background(), st); err != nil {
		j.logger.Error("persist task", "task_id", st.ID, "version", st.Version, "error", err)
	}
}

// Close flushes queued snapshots and stops the writer.
func (j *Journal) Close(ctx context.Context) error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()
		close(j.stop)
	})
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
