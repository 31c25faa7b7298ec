package stats

import (
	"sync"
	"testing"
	"time"
)

func TestSnapshot_EmptyRun(t *testing.T) {
	s := New(0)
	snap := s.Snapshot()

	if snap.Total != 0 || snap.Succeeded != 0 || snap.Failed != 0 {
		t.Errorf("empty run snapshot = %+v, want zero counters", snap)
	}
	if snap.AvgDownload != 0 {
		t.Errorf("AvgDownload = %v, want 0 with no downloads", snap.AvgDownload)
	}
	if !snap.Accounted() {
		t.Error("empty run should be fully accounted")
	}
}

func TestRecordOutcomes(t *testing.T) {
	s := New(4)

	s.RecordDownload(1000, 2*time.Second)
	s.RecordProcessed(900, 100*time.Millisecond)

	s.RecordDownload(500, 1*time.Second)
	s.RecordProcessed(500, 50*time.Millisecond)

	s.RecordDownload(200, 1*time.Second)
	s.RecordTransformFailure()

	s.RecordFailure()

	snap := s.Snapshot()

	if snap.Total != 4 {
		t.Errorf("Total = %d, want 4", snap.Total)
	}
	if snap.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", snap.Succeeded)
	}
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if snap.TransformFailed != 1 {
		t.Errorf("TransformFailed = %d, want 1", snap.TransformFailed)
	}
	if snap.BytesDownloaded != 1700 {
		t.Errorf("BytesDownloaded = %d, want 1700", snap.BytesDownloaded)
	}
	if snap.BytesProcessed != 1400 {
		t.Errorf("BytesProcessed = %d, want 1400", snap.BytesProcessed)
	}
	if snap.DownloadTime != 4*time.Second {
		t.Errorf("DownloadTime = %v, want 4s", snap.DownloadTime)
	}
	if snap.ProcessTime != 150*time.Millisecond {
		t.Errorf("ProcessTime = %v, want 150ms", snap.ProcessTime)
	}

	if !snap.Accounted() {
		t.Error("all four URLs landed in a bucket, snapshot should be accounted")
	}

	// Three downloads completed (two processed, one kept raw).
	if want := 4 * time.Second / 3; snap.AvgDownload != want {
		t.Errorf("AvgDownload = %v, want %v", snap.AvgDownload, want)
	}
}

func TestSnapshot_WhileRunning(t *testing.T) {
	s := New(3)
	s.RecordDownload(100, time.Second)
	s.RecordProcessed(100, time.Millisecond)

	snap := s.Snapshot()
	if snap.Accounted() {
		t.Error("run with outstanding URLs should not be accounted yet")
	}
	if snap.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", snap.Elapsed)
	}
}

func TestConcurrentRecording(t *testing.T) {
	const workers = 16
	const perWorker = 100

	s := New(workers * perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.RecordDownload(10, time.Millisecond)
				s.RecordProcessed(10, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if want := workers * perWorker; snap.Succeeded != want {
		t.Errorf("Succeeded = %d, want %d", snap.Succeeded, want)
	}
	if want := int64(workers * perWorker * 10); snap.BytesDownloaded != want {
		t.Errorf("BytesDownloaded = %d, want %d", snap.BytesDownloaded, want)
	}
	if want := time.Duration(workers*perWorker) * time.Millisecond; snap.DownloadTime != want {
		t.Errorf("DownloadTime = %v, want %v", snap.DownloadTime, want)
	}
	if !snap.Accounted() {
		t.Error("drained run should be fully accounted")
	}
}
