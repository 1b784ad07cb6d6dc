package reindex

import (
	"sync"
	"time"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// registry holds reindex tasks in memory. Capacity-bounded: when full,
// the oldest terminal task past its TTL is evicted; running tasks are
// never evicted.
type registry struct {
	mu       sync.RWMutex
	tasks    map[string]*taskEntry
	capacity int
	ttl      time.Duration
}

type taskEntry struct {
	task      domain.ReindexTask
	createdAt time.Time
	cancel    func()
}

func newRegistry(capacity int, ttl time.Duration) *registry {
	if capacity <= 0 {
		capacity = 64
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &registry{
		tasks:    make(map[string]*taskEntry),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (r *registry) put(task domain.ReindexTask, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tasks) >= r.capacity {
		r.evictLocked()
	}
	r.tasks[task.ID] = &taskEntry{task: task, createdAt: time.Now(), cancel: cancel}
}

// get returns a copy; callers never see the live struct the worker mutates.
func (r *registry) get(id string) (domain.ReindexTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tasks[id]
	if !ok {
		return domain.ReindexTask{}, false
	}
	return e.task, true
}

func (r *registry) cancelFunc(id string) (func(), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return e.cancel, true
}

// update applies fn to the stored task under the lock.
func (r *registry) update(id string, fn func(*domain.ReindexTask)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.tasks[id]; ok {
		fn(&e.task)
	}
}

// anyRunning reports whether a non-terminal task exists.
func (r *registry) anyRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.tasks {
		if !e.task.Status.Terminal() {
			return true
		}
	}
	return false
}

// evictLocked drops expired terminal tasks; if none expired, the oldest
// terminal task goes instead so a new task always fits.
func (r *registry) evictLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	now := time.Now()
	for id, e := range r.tasks {
		if !e.task.Status.Terminal() {
			continue
		}
		if now.Sub(e.createdAt) > r.ttl {
			delete(r.tasks, id)
			continue
		}
		if oldestID == "" || e.createdAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.createdAt
		}
	}
	if len(r.tasks) >= r.capacity && oldestID != "" {
		delete(r.tasks, oldestID)
	}
}
