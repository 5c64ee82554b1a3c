package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fileindex/internal/database"
	"fileindex/internal/indexer"
)

// stubIndex serves fixed health and build results.
type stubIndex struct {
	health   indexer.HealthStatus
	stats    indexer.Stats
	buildErr error
	builds   int
}

func (s *stubIndex) Root() string { return "/srv/media" }

func (s *stubIndex) Stats(context.Context) indexer.Stats { return s.stats }

func (s *stubIndex) Health(context.Context) indexer.HealthStatus { return s.health }

func (s *stubIndex) TriggerBuild(context.Context) error {
	s.builds++
	return s.buildErr
}

func (s *stubIndex) Search(context.Context, database.SearchOptions) *database.SearchResult {
	return &database.SearchResult{Results: []database.FileRecord{}}
}

func (s *stubIndex) DirectoryChildren(context.Context, database.ListOptions) *database.FileList {
	return &database.FileList{Files: []database.FileRecord{}}
}

func (s *stubIndex) FindMedia(context.Context, database.MediaOptions) *database.FileList {
	return &database.FileList{Files: []database.FileRecord{}}
}

func (s *stubIndex) RandomImage(context.Context, string) *database.FileRecord { return nil }

func (s *stubIndex) GetFile(context.Context, string) *database.FileRecord { return nil }

func (s *stubIndex) Export(context.Context, string, func(*database.FileRecord) error) error {
	return nil
}

func (s *stubIndex) SaveBatch(context.Context, []database.FileRecord) int { return 0 }

func (s *stubIndex) Delete(context.Context, string) bool { return false }

func (s *stubIndex) RecordPath(context.Context, string) error { return nil }

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	lastBuilt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		health     indexer.HealthStatus
		wantCode   int
		wantStatus string
	}{
		{"store down", indexer.HealthStatus{}, http.StatusServiceUnavailable, statusDown},
		{"never built", indexer.HealthStatus{Ready: true}, http.StatusOK, statusEmpty},
		{"building", indexer.HealthStatus{Ready: true, Building: true}, http.StatusOK, statusBuilding},
		{"last build failed", indexer.HealthStatus{Ready: true, Built: true, LastError: "boom"}, http.StatusOK, statusDegraded},
		{"healthy", indexer.HealthStatus{Ready: true, Built: true, LastBuilt: lastBuilt, Files: 9}, http.StatusOK, statusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			idx := &stubIndex{health: tt.health, stats: indexer.Stats{Progress: indexer.BuildProgress{Total: 10, Processed: 4, Percent: 40}}}
			w := serve(t, setupRouter(idx), http.MethodGet, "/healthz", "")

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Root != "/srv/media" || resp.GoVersion == "" {
				t.Errorf("resp = %+v", resp)
			}
			if tt.health.Building && (resp.Progress == nil || resp.Progress.Processed != 4) {
				t.Errorf("progress = %+v", resp.Progress)
			}
			if !tt.health.Building && resp.Progress != nil {
				t.Errorf("progress reported while idle: %+v", resp.Progress)
			}
			if !tt.health.LastBuilt.IsZero() && resp.LastBuilt != "2024-03-01T12:00:00Z" {
				t.Errorf("lastBuilt = %q", resp.LastBuilt)
			}
		})
	}
}

func TestHealthCheckWithEngine(t *testing.T) {
	t.Parallel()

	e, _ := setupIndex(t, "a.txt", "b.txt")
	resp := decode[HealthResponse](t, serve(t, setupRouter(e), http.MethodGet, "/healthz", ""))

	if resp.Status != statusHealthy || resp.Files != 2 || !resp.Built {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()

	r := setupRouter(&stubIndex{})

	w := serve(t, r, http.MethodGet, "/livez", "")
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["status"] != "alive" {
		t.Errorf("GET /livez = %d %s", w.Code, w.Body.String())
	}

	w = serve(t, r, http.MethodHead, "/livez", "")
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", w.Code, w.Body.Len())
	}
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ready    bool
		wantCode int
		want     string
	}{
		{true, http.StatusOK, "ready"},
		{false, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		idx := &stubIndex{health: indexer.HealthStatus{Ready: tt.ready, Building: true}}
		w := serve(t, setupRouter(idx), http.MethodGet, "/readyz", "")
		if w.Code != tt.wantCode {
			t.Errorf("ready=%v: code = %d, want %d", tt.ready, w.Code, tt.wantCode)
		}
		if got := decode[map[string]string](t, w)["status"]; got != tt.want {
			t.Errorf("ready=%v: status = %q, want %q", tt.ready, got, tt.want)
		}
	}
}

func TestTriggerBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"started", nil, http.StatusAccepted},
		{"already running", indexer.ErrBuildInProgress, http.StatusConflict},
		{"other failure", errors.New("disk gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			idx := &stubIndex{buildErr: tt.err}
			w := serve(t, setupRouter(idx), http.MethodPost, "/api/index/build", "")
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if idx.builds != 1 {
				t.Errorf("TriggerBuild called %d times", idx.builds)
			}
		})
	}
}

func TestTriggerBuildUsesBaseContext(t *testing.T) {
	t.Parallel()

	e, _ := setupIndex(t, "a.txt")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New(ctx, e)

	req := httptest.NewRequest(http.MethodPost, "/api/index/build", http.NoBody)
	reqCtx, reqCancel := context.WithCancel(req.Context())
	w := httptest.NewRecorder()
	h.TriggerBuild(w, req.WithContext(reqCtx))
	reqCancel()

	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d", w.Code)
	}

	deadline := time.Now().Add(10 * time.Second)
	for e.Builder().IsBuilding() {
		if time.Now().After(deadline) {
			t.Fatal("build did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := e.Builder().LastError(); err != nil {
		t.Errorf("build tied to the request context failed: %v", err)
	}
}
