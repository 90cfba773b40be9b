package telemetry

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name        string
		measurement string
		tags        []Pair
		fields      []Pair
		want        string
	}{
		{
			name:        "tags and fields",
			measurement: "run",
			tags:        []Pair{{"keyboard", "3"}, {"generation", "12"}},
			fields:      []Pair{{"status", "start"}},
			want:        `run,keyboard=3,generation=12 status="start" 1700000000000`,
		},
		{
			name:        "spaces escaped",
			measurement: "my job",
			tags:        []Pair{{"tag key", "tag val"}},
			fields:      []Pair{{"field key", "v"}},
			want:        `my\ job,tag\ key=tag\ val field\ key="v" 1700000000000`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLine(tt.measurement, tt.tags, tt.fields, 1700000000000)
			if got != tt.want {
				t.Errorf("formatLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewFromEnvMissing(t *testing.T) {
	t.Setenv("URL", "")
	t.Setenv("KEY", "")
	if _, err := NewFromEnv(); err != ErrMissingEnv {
		t.Fatalf("err = %v, want ErrMissingEnv", err)
	}
}

type capturedRequest struct {
	query   string
	headers http.Header
	body    string
}

func TestClientBatchesAndPosts(t *testing.T) {
	var mu sync.Mutex
	var reqs []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("body is not gzip: %v", err)
			return
		}
		body, err := io.ReadAll(zr)
		if err != nil {
			t.Errorf("reading body: %v", err)
			return
		}
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			query:   r.URL.RawQuery,
			headers: r.Header.Clone(),
			body:    string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	c.Emit("job", []Pair{{"keyboard", "0"}}, []Pair{{"status", "preparation"}})
	c.Emit("job", []Pair{{"keyboard", "0"}}, []Pair{{"status", "start"}})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1 (Close flushes a single batch)", len(reqs))
	}
	req := reqs[0]

	if req.query != "bucket=keyboard_gen&precision=ms" {
		t.Errorf("query = %q", req.query)
	}
	if got := req.headers.Get("Authorization"); got != "Token secret" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.headers.Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q", got)
	}

	lines := strings.Split(strings.TrimRight(req.body, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("batch has %d lines, want 2: %q", len(lines), req.body)
	}
	if !strings.HasPrefix(lines[0], `job,keyboard=0 status="preparation" `) {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `job,keyboard=0 status="start" `) {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestClientFlushesOnRecordLimit(t *testing.T) {
	var mu sync.Mutex
	batches := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		batches++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	for range batchRecords {
		c.Emit("m", nil, []Pair{{"status", "x"}})
	}

	// The batcher flushes once it has drained batchRecords records, well
	// before the 5s ticker.
	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := batches
		mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no flush after reaching the record limit")
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Close()
}

func TestEmitDoesNotBlockWhenQueueFull(t *testing.T) {
	// No server and a stopped consumer: fill past the queue depth and make
	// sure Emit returns promptly by virtue of completing at all.
	c := &Client{
		queue: make(chan string, 4),
		done:  make(chan struct{}),
		nowFn: time.Now,
	}
	for range 100 {
		c.Emit("m", nil, []Pair{{"f", "v"}})
	}
	if len(c.queue) != 4 {
		t.Fatalf("queue len = %d, want 4 (overflow dropped)", len(c.queue))
	}
}
