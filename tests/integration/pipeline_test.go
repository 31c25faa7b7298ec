//go:build integration

package integration

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgar-tools/bulkfetch/internal/testutil"
	"github.com/edgar-tools/bulkfetch/pkg/edgar"
	"github.com/edgar-tools/bulkfetch/pkg/fetch"
	"github.com/edgar-tools/bulkfetch/pkg/pipeline"
	"github.com/klauspost/compress/gzip"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupOrigin starts an nginx container serving docroot under /Archives
// and returns its base URL.
func setupOrigin(t *testing.T, docroot string) (string, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "nginx:alpine",
		ExposedPorts: []string{"80/tcp"},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      docroot,
				ContainerFilePath: "/usr/share/nginx/html/Archives",
				FileMode:          0o755,
			},
		},
		WaitingFor: wait.ForListeningPort("80/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start nginx container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get nginx endpoint: %v", err)
	}

	cleanup := func() {
		container.Terminate(ctx)
	}

	return "http://" + endpoint, cleanup
}

// writeIndexTree lays out quarterly master indexes on the host,
// mirroring EDGAR's full-index layout, and returns the Archives root.
func writeIndexTree(t *testing.T, indexes map[string]string) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "Archives")
	for quarter, body := range indexes {
		path := filepath.Join(root, "edgar", "full-index", quarter, "master.idx")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating index directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("writing index file: %v", err)
		}
	}
	return root
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("reading gzip stream: %v", err)
	}
	defer gz.Close()

	files := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar entry: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading tar entry %s: %v", hdr.Name, err)
		}
		files[hdr.Name] = string(data)
	}
	return files
}

// TestPipeline_Integration_QuarterRange runs the whole flow against a
// containerized origin: download a quarter range, archive what
// succeeded, log what did not, and parse a downloaded index.
func TestPipeline_Integration_QuarterRange(t *testing.T) {
	q1 := testutil.MasterIndexBody(
		"edgar/data/1000001/0001000001-24-000001.txt",
		"edgar/data/1000002/0001000002-24-000002.txt",
	)
	q2 := testutil.MasterIndexBody(
		"edgar/data/1000003/0001000003-24-000003.txt",
	)

	docroot := writeIndexTree(t, map[string]string{
		"2024/QTR1": q1,
		"2024/QTR2": q2,
	})

	base, cleanup := setupOrigin(t, docroot)
	defer cleanup()

	// QTR3 is absent from the docroot, so nginx serves a 404 for it.
	urls := []string{
		base + "/Archives/edgar/full-index/2024/QTR1/master.idx",
		base + "/Archives/edgar/full-index/2024/QTR2/master.idx",
		base + "/Archives/edgar/full-index/2024/QTR3/master.idx",
	}

	dir := t.TempDir()
	p, err := pipeline.New(pipeline.Config{
		URLs:             urls,
		Dir:              dir,
		ArchivePrefix:    "edgar_indexes_2024",
		Headers:          edgar.Headers("integration@test.com"),
		RateLimit:        50,
		FetchConcurrency: 2,
		Retry:            fetch.RetryConfig{MaxAttempts: 2, BackoffBase: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := result.Stats
	if snap.Succeeded != 2 || snap.Failed != 1 {
		t.Errorf("stats = %d succeeded, %d failed; want 2/1", snap.Succeeded, snap.Failed)
	}
	if !snap.Accounted() {
		t.Error("Accounted() = false for a drained run")
	}

	files := readArchive(t, result.ArchivePath)
	if len(files) != 2 {
		t.Fatalf("archive holds %d files, want 2", len(files))
	}
	if files["QTR1_master.idx"] != q1 {
		t.Errorf("QTR1_master.idx does not match the served index")
	}
	if files["QTR2_master.idx"] != q2 {
		t.Errorf("QTR2_master.idx does not match the served index")
	}

	if result.FailureLog == "" {
		t.Fatal("FailureLog empty for a run with a missing quarter")
	}
	logData, err := os.ReadFile(result.FailureLog)
	if err != nil {
		t.Fatalf("reading failure log: %v", err)
	}
	if !strings.Contains(string(logData), urls[2]) {
		t.Errorf("failure log does not mention the missing quarter, got %q", logData)
	}

	// The downloaded index parses into filings pointing back at EDGAR.
	filings, err := edgar.ParseMasterIndex(strings.NewReader(files["QTR1_master.idx"]))
	if err != nil {
		t.Fatalf("ParseMasterIndex() error = %v", err)
	}
	if len(filings) != 2 {
		t.Fatalf("parsed %d filings, want 2", len(filings))
	}
	wantURL := "https://www.sec.gov/Archives/edgar/data/1000001/0001000001-24-000001.txt"
	if got := edgar.FilingURL(filings[0].Filename); got != wantURL {
		t.Errorf("FilingURL() = %q, want %q", got, wantURL)
	}
}
