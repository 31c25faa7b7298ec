package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FailureRecord describes one URL that failed for good.
type FailureRecord struct {
	// URL is the source URL.
	URL string

	// Error is the message of the final error.
	Error string

	// Attempts is the number of attempts consumed.
	Attempts int
}

// failureRecorder collects failed downloads across workers and writes
// the end-of-run failure log.
type failureRecorder struct {
	mu      sync.Mutex
	records []FailureRecord

	// Clock indirection for deterministic log names in tests.
	now func() time.Time
}

func newFailureRecorder() *failureRecorder {
	return &failureRecorder{now: time.Now}
}

func (r *failureRecorder) record(rec FailureRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *failureRecorder) list() []FailureRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FailureRecord(nil), r.records...)
}

// flush writes failed_downloads_<timestamp>.log in dir and returns its
// path. A run with no failures writes nothing and returns "".
func (r *failureRecorder) flush(dir string) (string, error) {
	records := r.list()
	if len(records) == 0 {
		return "", nil
	}

	name := fmt.Sprintf("failed_downloads_%s.log", r.now().Format("20060102_1504"))
	path := filepath.Join(dir, name)

	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "URL: %s\nError: %s\nAttempts: %d\n\n", rec.URL, rec.Error, rec.Attempts)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write failure log: %w", err)
	}

	return path, nil
}
