// Package telemetry ships line-protocol samples to a time-series backend.
//
// Records flow through a buffered queue, which any number of goroutines may
// feed, into a background batcher
// that flushes every 5000 records or every 5 seconds, whichever comes
// first, gzip-encodes the batch and POSTs it. The search runs unchanged
// when telemetry is not configured: callers get a Nop emitter.
package telemetry

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	batchRecords  = 5000
	batchInterval = 5 * time.Second
	queueDepth    = 8192
)

// ErrMissingEnv reports absent telemetry configuration.
var ErrMissingEnv = errors.New("telemetry: URL and KEY must be set")

// Pair is an ordered tag or field entry.
type Pair struct {
	Key   string
	Value string
}

// Emitter accepts telemetry records. Emit never blocks the caller.
type Emitter interface {
	Emit(measurement string, tags, fields []Pair)
}

// Nop discards all records.
type Nop struct{}

func (Nop) Emit(string, []Pair, []Pair) {}

// Client batches records and POSTs them to ${URL}/api/v2/write.
type Client struct {
	url   string
	token string
	http  *http.Client
	queue chan string
	done  chan struct{}
	nowFn func() time.Time
}

// NewFromEnv builds a Client from the URL and KEY environment variables.
func NewFromEnv() (*Client, error) {
	url := os.Getenv("URL")
	key := os.Getenv("KEY")
	if url == "" || key == "" {
		return nil, ErrMissingEnv
	}
	return New(url, key), nil
}

// New returns a running Client posting to the given base URL with the given
// token. Call Close to flush and stop it.
func New(url, token string) *Client {
	c := &Client{
		url:   strings.TrimRight(url, "/") + "/api/v2/write?bucket=keyboard_gen&precision=ms",
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
		queue: make(chan string, queueDepth),
		done:  make(chan struct{}),
		nowFn: time.Now,
	}
	go c.run()
	return c
}

// Emit enqueues one record. If the queue is full the record is dropped
// rather than stalling the search.
func (c *Client) Emit(measurement string, tags, fields []Pair) {
	line := formatLine(measurement, tags, fields, c.nowFn().UnixMilli())
	select {
	case c.queue <- line:
	default:
	}
}

// Close flushes any buffered records and stops the batcher.
func (c *Client) Close() {
	close(c.queue)
	<-c.done
}

// formatLine renders one line-protocol record:
//
//	measurement,tag=v,... field="v",... <ms-timestamp>
func formatLine(measurement string, tags, fields []Pair, ms int64) string {
	var sb strings.Builder
	sb.WriteString(escape(measurement))
	for _, tag := range tags {
		sb.WriteByte(',')
		sb.WriteString(escape(tag.Key))
		sb.WriteByte('=')
		sb.WriteString(escape(tag.Value))
	}
	sb.WriteByte(' ')
	for i, field := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%q", escape(field.Key), field.Value)
	}
	fmt.Fprintf(&sb, " %d", ms)
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, " ", `\ `)
}

func (c *Client) run() {
	defer close(c.done)

	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	var buf bytes.Buffer
	pending := 0

	flush := func() {
		if pending == 0 {
			return
		}
		if err := c.post(buf.Bytes()); err != nil {
			log.Printf("telemetry: dropping batch of %d records: %v", pending, err)
		}
		buf.Reset()
		pending = 0
	}

	for {
		select {
		case line, open := <-c.queue:
			if !open {
				flush()
				return
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
			pending++
			if pending >= batchRecords {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (c *Client) post(body []byte) error {
	var gzipped bytes.Buffer
	zw := gzip.NewWriter(&gzipped)
	if _, err := zw.Write(body); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.url, &gzipped)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "text/plain; charset=utf8")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
