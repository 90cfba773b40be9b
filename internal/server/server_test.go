package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kmertens/keyforge/internal/board"
	"github.com/kmertens/keyforge/internal/job"
)

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return do(t, h, req)
}

func post(t *testing.T, h http.Handler, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	return do(t, h, req)
}

func do(t *testing.T, h http.Handler, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return rec.Code, payload
}

func TestUpdateInit(t *testing.T) {
	h := New(&job.State{}, func(int, string) {}).Handler()
	code, payload := get(t, h, "/update")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if payload["status"] != "init" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestNewStartsBatch(t *testing.T) {
	var state job.State
	var mu sync.Mutex
	launched := make(chan struct{})
	var gotSize int
	var gotName string

	h := New(&state, func(batchSize int, jobName string) {
		mu.Lock()
		gotSize, gotName = batchSize, jobName
		mu.Unlock()
		close(launched)
	}).Handler()

	code, payload := post(t, h, "/new", `{"batch_size": 3, "job_name": "nightly"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d: %v", code, payload)
	}
	if payload["status"] != "started" {
		t.Fatalf("payload = %v", payload)
	}

	<-launched
	mu.Lock()
	defer mu.Unlock()
	if gotSize != 3 || gotName != "nightly" {
		t.Fatalf("launched with (%d, %q), want (3, nightly)", gotSize, gotName)
	}

	code, payload = get(t, h, "/update")
	if code != http.StatusOK || payload["status"] != "in_progress" {
		t.Fatalf("update after start: %d %v", code, payload)
	}
	if payload["batch_size"].(float64) != 3 {
		t.Fatalf("batch_size = %v", payload["batch_size"])
	}
}

func TestNewConflictWhileRunning(t *testing.T) {
	var state job.State
	state.Begin(4)
	state.AddCompleted()

	h := New(&state, func(int, string) { t.Error("launcher called on conflict") }).Handler()
	code, payload := post(t, h, "/new", `{"batch_size": 2, "job_name": "x"}`)
	if code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", code)
	}
	if payload["batch_size"].(float64) != 4 || payload["completed"].(float64) != 1 {
		t.Fatalf("conflict payload = %v", payload)
	}
}

func TestNewReturnsPriorResults(t *testing.T) {
	var state job.State
	state.Begin(1)
	state.Finish([]job.Result{{Score: 7.5, Layout: board.New()}})

	h := New(&state, func(int, string) {}).Handler()
	code, payload := post(t, h, "/new", `{"batch_size": 1}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	prior, ok := payload["prior"].([]any)
	if !ok || len(prior) != 1 {
		t.Fatalf("prior = %v", payload["prior"])
	}
}

func TestUpdateCompleted(t *testing.T) {
	var state job.State
	state.Begin(1)
	state.Finish([]job.Result{{Score: 7.5, Layout: board.New()}})

	h := New(&state, func(int, string) {}).Handler()
	code, payload := get(t, h, "/update")
	if code != http.StatusOK || payload["status"] != "completed" {
		t.Fatalf("update: %d %v", code, payload)
	}
	keyboards, ok := payload["keyboards"].([]any)
	if !ok || len(keyboards) != 1 {
		t.Fatalf("keyboards = %v", payload["keyboards"])
	}
	entry := keyboards[0].(map[string]any)
	if entry["score"].(float64) != 7.5 {
		t.Fatalf("score = %v", entry["score"])
	}
	layout, ok := entry["layout"].([]any)
	if !ok || len(layout) != board.NumPositions {
		t.Fatalf("layout serialized with %d keys", len(layout))
	}
	first := layout[0].(map[string]any)
	if first["lower"] != "`" || first["upper"] != "~" {
		t.Fatalf("layout[0] = %v", first)
	}
}

func TestNewRejectsBadRequests(t *testing.T) {
	h := New(&job.State{}, func(int, string) { t.Error("launcher called") }).Handler()
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "batch please"},
		{"zero size", `{"batch_size": 0}`},
		{"negative size", `{"batch_size": -2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := post(t, h, "/new", tt.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", code)
			}
		})
	}
}
