package reindex

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopdex-io/shopdex/internal/domain"
)

func TestRegistry_PutGetUpdate(t *testing.T) {
	r := newRegistry(4, time.Hour)
	r.put(domain.ReindexTask{ID: "a", Status: domain.TaskRunning}, func() {})

	r.update("a", func(task *domain.ReindexTask) { task.ProcessedCount = 3 })

	got, ok := r.get("a")
	if !ok || got.ProcessedCount != 3 {
		t.Fatalf("update lost: %+v ok=%v", got, ok)
	}
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	r := newRegistry(4, time.Hour)
	r.put(domain.ReindexTask{ID: "a", Status: domain.TaskRunning}, func() {})

	snap, _ := r.get("a")
	snap.ProcessedCount = 99

	got, _ := r.get("a")
	if got.ProcessedCount != 0 {
		t.Error("caller mutation leaked into the registry")
	}
}

func TestRegistry_EvictsOldestTerminalWhenFull(t *testing.T) {
	r := newRegistry(3, time.Hour)
	for i := 0; i < 3; i++ {
		r.put(domain.ReindexTask{
			ID:     fmt.Sprintf("t%d", i),
			Status: domain.TaskCompleted,
		}, func() {})
		time.Sleep(time.Millisecond)
	}

	r.put(domain.ReindexTask{ID: "new", Status: domain.TaskPending}, func() {})

	if _, ok := r.get("t0"); ok {
		t.Error("oldest terminal task not evicted")
	}
	if _, ok := r.get("new"); !ok {
		t.Error("new task not stored")
	}
}

func TestRegistry_NeverEvictsRunning(t *testing.T) {
	r := newRegistry(2, time.Hour)
	r.put(domain.ReindexTask{ID: "run1", Status: domain.TaskRunning}, func() {})
	r.put(domain.ReindexTask{ID: "run2", Status: domain.TaskRunning}, func() {})

	r.put(domain.ReindexTask{ID: "run3", Status: domain.TaskPending}, func() {})

	for _, id := range []string{"run1", "run2", "run3"} {
		if _, ok := r.get(id); !ok {
			t.Errorf("non-terminal task %s evicted", id)
		}
	}
}

func TestRegistry_AnyRunning(t *testing.T) {
	r := newRegistry(4, time.Hour)
	if r.anyRunning() {
		t.Error("empty registry reports running")
	}

	r.put(domain.ReindexTask{ID: "a", Status: domain.TaskCompleted}, func() {})
	if r.anyRunning() {
		t.Error("terminal-only registry reports running")
	}

	r.put(domain.ReindexTask{ID: "b", Status: domain.TaskPending}, func() {})
	if !r.anyRunning() {
		t.Error("pending task not reported as running")
	}
}
