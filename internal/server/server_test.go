package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/local/pagecomposer/internal/config"
	"github.com/local/pagecomposer/internal/dispatcher"
	"github.com/local/pagecomposer/internal/store"
)

type nopProc struct{}

func (nopProc) Process(_ context.Context, job dispatcher.Job) (string, bool, error) {
	return job.Output, false, nil
}

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	cfg := config.FromEnv()
	cfg.Output.Dir = t.TempDir()
	srv := New(cfg, store.NewMemory(), nopProc{}, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return srv, mux
}

func TestHealth(t *testing.T) {
	_, mux := newTestServer(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestComposeBatchValidation(t *testing.T) {
	_, mux := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"no source", `{}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"bad mode", `{"file_path":"a.pdf","mode":"sideways"}`, http.StatusBadRequest},
		{"pair-documents without second", `{"file_path":"a.pdf","mode":"pair-documents"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compose_batch", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestComposeBatchAcceptsAndRecordsStatus(t *testing.T) {
	srv, mux := newTestServer(t)

	rec := httptest.NewRecorder()
	body := `{"file_path":"/nonexistent/in.pdf"}`
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compose_batch", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp composeResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.BatchID == "" {
		t.Fatal("no batch id returned")
	}

	// The batch fails on the missing source, but a status must exist.
	for i := 0; i < 100; i++ {
		st, err := srv.store.GetStatus(context.Background(), resp.BatchID)
		if err == nil && st.State == store.StateFailed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("missing-source batch never reached failed state")
}

func TestProgressAndReportNotFound(t *testing.T) {
	_, mux := newTestServer(t)
	for _, path := range []string{"/progress/nope", "/report/nope"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestProgressReturnsStoredStatus(t *testing.T) {
	srv, mux := newTestServer(t)
	_ = srv.store.SetStatus(context.Background(), "b1", store.Status{State: store.StateRunning, Done: 3, Total: 9})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/b1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st store.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Done != 3 || st.Total != 9 {
		t.Errorf("progress = %+v", st)
	}
}

func TestCancelUnknownBatch(t *testing.T) {
	_, mux := newTestServer(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/cancel_batch", strings.NewReader(`{"batch_id":"nope"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOptionsOverrides(t *testing.T) {
	srv, _ := newTestServer(t)
	f := 0.5
	b := false
	opts := srv.options(composeReq{DPI: 300, MinScale: &f, PreserveAspectRatio: &b})
	if opts.DPI != 300 || opts.MinScale != 0.5 || opts.PreserveAspectRatio {
		t.Errorf("opts = %+v", opts)
	}
	// Unset fields keep the configured defaults.
	if !opts.AddMargin || !opts.AutoFit {
		t.Errorf("defaults lost: %+v", opts)
	}
}
