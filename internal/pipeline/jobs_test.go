package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob_TimeOrderedID(t *testing.T) {
	a, err := NewJob(Request{SourceURL: "https://a.example.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := NewJob(Request{SourceURL: "https://b.example.com/"})

	id, err := uuid.Parse(a.ID)
	if err != nil {
		t.Fatalf("expected a UUID, got %q", a.ID)
	}
	if id.Version() != 7 {
		t.Errorf("expected version 7, got %d", id.Version())
	}
	if a.ID >= b.ID {
		t.Errorf("expected later job to sort after earlier one: %s >= %s", a.ID, b.ID)
	}
	if a.Status != StatusQueued {
		t.Errorf("expected queued status, got %q", a.Status)
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

	stages := []string{"fetching", "transcoding", "externalizing", "crawling", "assembling"}
	for _, name := range stages {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.Stage(name)

		if job.Status != StatusRunning {
			t.Errorf("expected status %q, got %q", StatusRunning, job.Status)
		}
		if job.Phase != name {
			t.Errorf("expected phase %q, got %q", name, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after Stage(%q)", name)
		}
	}

	job.Complete(&Result{Name: "cyoa.zip", Archive: []byte("zip"), ElapsedMS: 12})
	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.Phase != "done" {
		t.Errorf("expected completed/done, got %q/%q", snap.Status, snap.Phase)
	}
	if snap.Archive != "cyoa.zip" || snap.Size != 3 || snap.ElapsedMS != 12 {
		t.Errorf("unexpected result fields %+v", snap)
	}
}

func TestJob_SetStatusFailed(t *testing.T) {
	job := &Job{
		ID:        "test-fail",
		Status:    StatusRunning,
		UpdatedAt: time.Now(),
	}
	job.SetStatus(StatusFailed, "crawling")
	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
	if job.Result() != nil {
		t.Error("expected no result for failed job")
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("fetch project.json: status 404")
	job.AddError("second")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "fetch project.json: status 404" {
		t.Errorf("unexpected first error %q", snap.Progress.Errors[0])
	}
}

func TestJob_ReportChannels(t *testing.T) {
	job := &Job{ID: "progress-test", UpdatedAt: time.Now()}
	job.Report(PhaseFetch, 1, 4)
	job.Report(PhaseFetch, 2, 4)
	job.Report(PhaseTranscode, 5, 9)

	snap := job.Snapshot()
	if snap.Progress.Fetch != (Counter{Current: 2, Max: 4}) {
		t.Errorf("unexpected fetch progress %+v", snap.Progress.Fetch)
	}
	if snap.Progress.Transcode != (Counter{Current: 5, Max: 9}) {
		t.Errorf("unexpected transcode progress %+v", snap.Progress.Transcode)
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

func TestJobStore_ListNewestFirstAndDelete(t *testing.T) {
	store := NewJobStore(time.Hour)
	for _, id := range []string{"0001", "0003", "0002"} {
		store.Put(&Job{ID: id, UpdatedAt: time.Now()})
	}
	jobs := store.List()
	if len(jobs) != 3 || jobs[0].ID != "0003" || jobs[2].ID != "0001" {
		t.Errorf("unexpected order: %v, %v, %v", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
	if !store.Delete("0002") {
		t.Error("expected delete to report existing job")
	}
	if store.Delete("0002") {
		t.Error("expected second delete to report missing job")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 jobs, got %d", store.Len())
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

	// Add a fresh job.
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
