// Package usage records per-request accounting lines asynchronously so the
// request path never blocks on disk I/O.
package usage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one JSONL accounting line for a handled request.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id,omitempty"`
	Endpoint    string    `json:"endpoint"`
	Model       string    `json:"model,omitempty"`
	StatusCode  int       `json:"status_code"`
	FailureKind string    `json:"failure_kind,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	CostCredits int       `json:"cost_credits,omitempty"`
}

// Recorder buffers records in a channel and flushes them to a JSONL file from
// a single worker goroutine. Enqueue never blocks; records are dropped when
// the buffer is full.
type Recorder struct {
	ch            chan Record
	doneCh        chan struct{}
	wg            sync.WaitGroup
	flushInterval time.Duration

	mu     sync.Mutex
	closed bool

	file   *os.File
	writer *bufio.Writer
}

// NewRecorder opens the target file and starts the flush worker.
func NewRecorder(path string, bufferSize int, flushInterval time.Duration) (*Recorder, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		ch:            make(chan Record, bufferSize),
		doneCh:        make(chan struct{}),
		flushInterval: flushInterval,
		file:          file,
		writer:        bufio.NewWriter(file),
	}

	r.wg.Add(1)
	go r.worker()

	return r, nil
}

// Enqueue queues a record for writing. It reports false when the record was
// dropped because the buffer is full or the recorder is shut down.
func (r *Recorder) Enqueue(rec Record) bool {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return false
	}

	select {
	case r.ch <- rec:
		return true
	default:
		return false
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-r.ch:
			r.write(rec)
		case <-ticker.C:
			_ = r.writer.Flush()
		case <-r.doneCh:
			// Drain whatever is still queued.
			for {
				select {
				case rec := <-r.ch:
					r.write(rec)
				default:
					_ = r.writer.Flush()
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec Record) {
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_, _ = r.writer.Write(line)
	_ = r.writer.WriteByte('\n')
}

// Shutdown stops the worker, drains the buffer, and closes the file.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.doneCh)

	waitCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	return r.file.Close()
}
