package reindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopdex-io/shopdex/internal/domain"
)

type catalogMock struct {
	products []domain.ProductRecord
	listErr  error
}

func (m *catalogMock) ListPage(_ context.Context, afterID int64, limit int) ([]domain.ProductRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.ProductRecord
	for _, p := range m.products {
		if p.ID > afterID {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *catalogMock) Count(context.Context) (int, error) { return len(m.products), nil }

type indexWriterMock struct {
	mu      sync.Mutex
	ops     []string
	deleted []int64
	upserts []int64
}

func (m *indexWriterMock) Upsert(_ context.Context, id int64, _ []float32, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, fmt.Sprintf("upsert:%d", id))
	m.upserts = append(m.upserts, id)
	return nil
}

func (m *indexWriterMock) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, fmt.Sprintf("delete:%d", id))
	m.deleted = append(m.deleted, id)
	return nil
}

type embedMock struct {
	mu      sync.Mutex
	calls   int
	failOn  int // 1-based call number to fail, 0 = never
	started chan struct{}
	block   bool
}

func (m *embedMock) EmbedText(ctx context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.started != nil && n == 1 {
		close(m.started)
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.failOn != 0 && n == m.failOn {
		return nil, errors.New("embedding quota exceeded")
	}
	return []float32{0.1, 0.2}, nil
}

func products(n int) []domain.ProductRecord {
	out := make([]domain.ProductRecord, n)
	for i := range out {
		out[i] = domain.ProductRecord{ID: int64(i + 1), Title: fmt.Sprintf("Product %d", i+1)}
	}
	return out
}

func waitTerminal(t *testing.T, s *Service, id string) domain.ReindexTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := s.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state")
	return domain.ReindexTask{}
}

func TestReindex_FullRun(t *testing.T) {
	catalog := &catalogMock{products: products(5)}
	index := &indexWriterMock{}
	s := New(catalog, index, &embedMock{}, 8, time.Hour, 2, nil)

	task, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if task.TotalCount != 5 {
		t.Errorf("expected total 5, got %d", task.TotalCount)
	}

	final := waitTerminal(t, s, task.ID)
	if final.Status != domain.TaskCompleted {
		t.Fatalf("expected completed, got %s (lastError=%q)", final.Status, final.LastError)
	}
	if final.ProcessedCount != 5 || final.FailedCount != 0 {
		t.Errorf("expected 5 processed / 0 failed, got %d/%d", final.ProcessedCount, final.FailedCount)
	}
	if len(index.upserts) != 5 {
		t.Errorf("expected 5 upserts, got %d", len(index.upserts))
	}
}

func TestReindex_DeleteBeforeUpsertPerItem(t *testing.T) {
	catalog := &catalogMock{products: products(2)}
	index := &indexWriterMock{}
	s := New(catalog, index, &embedMock{}, 8, time.Hour, 10, nil)

	task, _ := s.Start(context.Background())
	waitTerminal(t, s, task.ID)

	want := []string{"delete:1", "upsert:1", "delete:2", "upsert:2"}
	if strings.Join(index.ops, ",") != strings.Join(want, ",") {
		t.Errorf("op order wrong: %v", index.ops)
	}
}

func TestReindex_PerItemFailureDoesNotAbort(t *testing.T) {
	catalog := &catalogMock{products: products(10)}
	index := &indexWriterMock{}
	emb := &embedMock{failOn: 7}
	s := New(catalog, index, emb, 8, time.Hour, 3, nil)

	task, _ := s.Start(context.Background())
	final := waitTerminal(t, s, task.ID)

	if final.Status != domain.TaskCompleted {
		t.Fatalf("per-item failure must not fail the task: %s", final.Status)
	}
	if final.ProcessedCount != 10 || final.FailedCount != 1 {
		t.Errorf("expected 10 processed / 1 failed, got %d/%d", final.ProcessedCount, final.FailedCount)
	}
	if final.LastError == "" {
		t.Error("expected lastError to record the item failure")
	}
	if len(index.upserts) != 9 {
		t.Errorf("expected 9 upserts, got %d", len(index.upserts))
	}
}

func TestReindex_TopLevelFailure(t *testing.T) {
	catalog := &catalogMock{listErr: errors.New("catalog connection lost")}
	s := New(catalog, &indexWriterMock{}, &embedMock{}, 8, time.Hour, 10, nil)

	task, _ := s.Start(context.Background())
	final := waitTerminal(t, s, task.ID)

	if final.Status != domain.TaskFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.LastError, "catalog connection lost") {
		t.Errorf("lastError missing cause: %q", final.LastError)
	}
}

func TestReindex_Cancel(t *testing.T) {
	catalog := &catalogMock{products: products(100)}
	emb := &embedMock{block: true, started: make(chan struct{})}
	s := New(catalog, &indexWriterMock{}, emb, 8, time.Hour, 10, nil)

	task, _ := s.Start(context.Background())
	<-emb.started

	if err := s.Cancel(task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	final := waitTerminal(t, s, task.ID)
	if final.Status != domain.TaskFailed {
		t.Fatalf("cancelled task must end failed, got %s", final.Status)
	}
	if final.LastError != domain.ErrReindexCancelled.Error() {
		t.Errorf("expected cancelled-by-caller error, got %q", final.LastError)
	}
}

func TestReindex_SingleFlight(t *testing.T) {
	catalog := &catalogMock{products: products(50)}
	emb := &embedMock{block: true, started: make(chan struct{})}
	s := New(catalog, &indexWriterMock{}, emb, 8, time.Hour, 10, nil)

	task, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	<-emb.started

	if _, err := s.Start(context.Background()); !errors.Is(err, domain.ErrReindexRunning) {
		t.Fatalf("expected ErrReindexRunning, got %v", err)
	}

	s.Cancel(task.ID)
	waitTerminal(t, s, task.ID)
}

func TestReindex_StatusUnknownTask(t *testing.T) {
	s := New(&catalogMock{}, &indexWriterMock{}, &embedMock{}, 8, time.Hour, 10, nil)

	if _, err := s.Status("nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := s.Cancel("nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
