package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/chunkers"
	"github.com/oho/chunking-daemon/internal/job"
	"github.com/oho/chunking-daemon/internal/router"
	"github.com/oho/chunking-daemon/internal/sink"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

func newTestProcessor(t *testing.T) (*job.Processor, *job.Registry) {
	t.Helper()
	tok := tokenizer.New()
	rec := chunkers.NewRecursiveChunker(tok)
	rtr := &router.Registry{
		Token:     chunkers.NewTokenChunker(tok),
		Sentence:  chunkers.NewSentenceChunker(tok),
		Recursive: rec,
		Code:      chunkers.NewCodeChunker(tok, rec),
		Document:  chunkers.NewDocumentChunker(tok, rec),
		Chat:      chunkers.NewChatChunker(tok),
		Ticketing: chunkers.NewTicketingChunker(tok, rec),
		Table:     chunkers.NewTableChunker(tok),
		Agentic:   chunkers.NewAgenticChunker(tok),
		WebHTML:   chunkers.NewHTMLChunker(tok, rec),
	}
	registry := job.NewRegistry()
	proc := job.NewProcessor(registry, rtr, sink.New("", time.Second), 2)
	return proc, registry
}

func TestJobsRouterSubmitAndGet(t *testing.T) {
	proc, registry := newTestProcessor(t)
	store := newTestStore(t)
	r := JobsRouter(proc, registry, store)

	reqBody, _ := json.Marshal(submitRequest{
		SourceID:   "src1",
		SourceKind: chunk.SourceDocument,
		Items: []submitItem{
			{ID: "item1", Content: "A short piece of content to chunk."},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(reqBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Accepted || resp.JobID == "" {
		t.Fatalf("expected an accepted job with an ID, got %+v", resp)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/"+resp.JobID, nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("expected 200 on job status lookup, got %d", getW.Code)
	}
}

func TestJobsRouterRejectsEmptyItems(t *testing.T) {
	proc, registry := newTestProcessor(t)
	store := newTestStore(t)
	r := JobsRouter(proc, registry, store)

	reqBody, _ := json.Marshal(submitRequest{SourceID: "src1", Items: nil})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(reqBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty items, got %d", w.Code)
	}
}

func TestJobsRouterMalformedBody(t *testing.T) {
	proc, registry := newTestProcessor(t)
	store := newTestStore(t)
	r := JobsRouter(proc, registry, store)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestJobsRouterGetUnknownJob(t *testing.T) {
	proc, registry := newTestProcessor(t)
	store := newTestStore(t)
	r := JobsRouter(proc, registry, store)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown job_id, got %d", w.Code)
	}
}
