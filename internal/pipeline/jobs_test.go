package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("batch.hl7", []byte("MSH|^~\\&"), nil)
	id, err := uuid.Parse(job.ID)
	if err != nil {
		t.Fatalf("expected uuid job id, got %q: %v", job.ID, err)
	}
	if id.Version() != 7 {
		t.Errorf("expected version 7 id, got %d", id.Version())
	}
	if job.Status != StatusQueued || job.Filename != "batch.hl7" {
		t.Errorf("unexpected job %+v", job)
	}
	if job.ContentHash != ContentHashHex([]byte("MSH|^~\\&")) {
		t.Error("expected content hash of the file data")
	}
	if NewJobID() == NewJobID() {
		t.Error("expected distinct ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusSplitting, "splitting"},
		{StatusParsing, "parsing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.CurrentStatus() != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Done(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusFailed, StatusPartial} {
		if !s.Done() {
			t.Errorf("expected %q to be final", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusSplitting, StatusParsing} {
		if s.Done() {
			t.Errorf("expected %q to be in progress", s)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("message 3 failed")
	job.AddError("message 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "message 3 failed" {
		t.Errorf("expected first error %q, got %q", "message 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_AddResult(t *testing.T) {
	job := &Job{ID: "results-test", UpdatedAt: time.Now()}
	job.SetTotalMessages(3)
	job.AddResult(MessageResult{Index: 2, LintErrors: 1, LintWarnings: 2})
	job.AddResult(MessageResult{Index: 0})
	job.AddResult(MessageResult{Index: 1, Error: "bad delimiters"})

	snap := job.Snapshot()
	p := snap.Progress
	if p.TotalMessages != 3 || p.MessagesProcessed != 3 || p.MessagesFailed != 1 {
		t.Errorf("unexpected progress %+v", p)
	}
	if p.LintErrors != 1 || p.LintWarnings != 2 {
		t.Errorf("unexpected lint totals %+v", p)
	}
	if snap.Results != nil {
		t.Error("expected no results before the job is done")
	}

	results := job.Results()
	for i, r := range results {
		if r.Index != i {
			t.Errorf("expected results ordered by index, got %d at %d", r.Index, i)
		}
	}
}

func TestJob_SnapshotIncludesResultsWhenDone(t *testing.T) {
	job := &Job{ID: "done-test", UpdatedAt: time.Now()}
	job.AddResult(MessageResult{Index: 0})
	job.SetStatus(StatusCompleted, "done")

	snap := job.Snapshot()
	if len(snap.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(snap.Results))
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["job_id"] != "done-test" || decoded["status"] != "completed" {
		t.Errorf("unexpected snapshot json %s", data)
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
	job.releaseInput()
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
