package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
)

type queryMock struct {
	outcome domain.SearchOutcome
	err     error
	gotQ    domain.Query
}

func (m *queryMock) Query(_ context.Context, q domain.Query) (domain.SearchOutcome, error) {
	m.gotQ = q
	return m.outcome, m.err
}

type reindexMock struct {
	task      domain.ReindexTask
	startErr  error
	statusErr error
	cancelErr error
	cancelled string
}

func (m *reindexMock) Start(context.Context) (domain.ReindexTask, error) {
	return m.task, m.startErr
}

func (m *reindexMock) Status(string) (domain.ReindexTask, error) {
	return m.task, m.statusErr
}

func (m *reindexMock) Cancel(id string) error {
	m.cancelled = id
	return m.cancelErr
}

func newTestServer(q *queryMock, rx *reindexMock) http.Handler {
	return NewServer(q, rx, nil, zap.NewNop()).Router(nil)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostQuery(t *testing.T) {
	price := 49.0
	q := &queryMock{outcome: domain.SearchOutcome{
		ToolUsed: domain.ToolSearchByText,
		Results: []domain.RankedResult{{
			Record:   domain.ProductRecord{ID: 1, Title: "Blue Shirt", Price: &price},
			Distance: 0.12,
			Origin:   domain.OriginVector,
		}},
		Response: "Found 1 products for you.",
	}}
	h := newTestServer(q, &reindexMock{})

	rec := postJSON(t, h, "/api/v1/query", queryRequest{Message: "show me shirts", SessionID: "s1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ToolUsed != "search_by_text" || len(resp.Products) != 1 {
		t.Errorf("response wrong: %+v", resp)
	}
	if resp.Products[0].Origin != "vector" || resp.Products[0].Distance != 0.12 {
		t.Errorf("ranking fields lost: %+v", resp.Products[0])
	}
	if q.gotQ.Text != "show me shirts" || q.gotQ.SessionID != "s1" {
		t.Errorf("query not forwarded: %+v", q.gotQ)
	}
}

func TestPostQuery_GeneratesSessionID(t *testing.T) {
	q := &queryMock{outcome: domain.SearchOutcome{ToolUsed: domain.ToolSearchByText}}
	h := newTestServer(q, &reindexMock{})

	rec := postJSON(t, h, "/api/v1/query", queryRequest{Message: "hi"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp queryResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.SessionID == "" || q.gotQ.SessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestPostQuery_EmptyQuery(t *testing.T) {
	q := &queryMock{err: domain.ErrEmptyQuery}
	h := newTestServer(q, &reindexMock{})

	rec := postJSON(t, h, "/api/v1/query", queryRequest{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPostQuery_BadImagePayload(t *testing.T) {
	h := newTestServer(&queryMock{}, &reindexMock{})

	rec := postJSON(t, h, "/api/v1/query", queryRequest{Message: "x", Image: "not-base64!!!"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPostQuery_ProductNotFound(t *testing.T) {
	q := &queryMock{err: domain.ErrProductNotFound}
	h := newTestServer(q, &reindexMock{})

	rec := postJSON(t, h, "/api/v1/query", queryRequest{Message: "detail 99"})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStartReindex(t *testing.T) {
	rx := &reindexMock{task: domain.ReindexTask{ID: "t1", Status: domain.TaskPending, TotalCount: 12}}
	h := newTestServer(&queryMock{}, rx)

	rec := postJSON(t, h, "/api/v1/reindex", struct{}{})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp reindexResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ID != "t1" || resp.Status != "pending" || resp.TotalCount != 12 {
		t.Errorf("task response wrong: %+v", resp)
	}
}

func TestStartReindex_AlreadyRunning(t *testing.T) {
	rx := &reindexMock{startErr: domain.ErrReindexRunning}
	h := newTestServer(&queryMock{}, rx)

	rec := postJSON(t, h, "/api/v1/reindex", struct{}{})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestGetReindex_NotFound(t *testing.T) {
	rx := &reindexMock{statusErr: domain.ErrTaskNotFound}
	h := newTestServer(&queryMock{}, rx)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reindex/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelReindex(t *testing.T) {
	rx := &reindexMock{}
	h := newTestServer(&queryMock{}, rx)

	rec := postJSON(t, h, "/api/v1/reindex/t1/cancel", struct{}{})

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rx.cancelled != "t1" {
		t.Errorf("cancel id not forwarded: %q", rx.cancelled)
	}
}

func TestHealthCheck(t *testing.T) {
	checks := map[string]func(context.Context) error{
		"catalog": func(context.Context) error { return nil },
	}
	h := NewServer(&queryMock{}, &reindexMock{}, checks, zap.NewNop()).Router(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	checks := map[string]func(context.Context) error{
		"vector": func(context.Context) error { return context.DeadlineExceeded },
	}
	h := NewServer(&queryMock{}, &reindexMock{}, checks, zap.NewNop()).Router(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
