package job

import (
	"testing"

	"github.com/oho/chunking-daemon/internal/chunk"
)

func TestRegistryCreateAndGet(t *testing.T) {
	reg := NewRegistry()
	r := reg.create("src1", chunk.SourceDocument, 3)

	snap, ok := reg.Get(r.ID)
	if !ok {
		t.Fatal("expected the created job to be retrievable")
	}
	if snap.Status != StatusPending {
		t.Errorf("expected a freshly created job to be pending, got %s", snap.Status)
	}
	if snap.TotalItems != 3 {
		t.Errorf("expected TotalItems=3, got %d", snap.TotalItems)
	}
}

func TestRegistryGetUnknownID(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("does-not-exist"); ok {
		t.Error("expected an unknown job_id to not be found")
	}
}

func TestRecordLifecycleTransitions(t *testing.T) {
	reg := NewRegistry()
	r := reg.create("src1", chunk.SourceDocument, 2)

	r.markRunning()
	snap, _ := reg.Get(r.ID)
	if snap.Status != StatusRunning || snap.StartedAt == nil {
		t.Fatalf("expected running status with StartedAt set, got %+v", snap)
	}

	r.bumpProcessed(5)
	r.bumpProcessed(3)
	snap, _ = reg.Get(r.ID)
	if snap.ProcessedItems != 2 || snap.ChunksCreated != 8 {
		t.Errorf("expected ProcessedItems=2, ChunksCreated=8, got %+v", snap)
	}

	r.bumpSinkError()
	snap, _ = reg.Get(r.ID)
	if snap.SinkErrors != 1 {
		t.Errorf("expected SinkErrors=1, got %d", snap.SinkErrors)
	}

	r.markCompleted()
	snap, _ = reg.Get(r.ID)
	if snap.Status != StatusCompleted || snap.CompletedAt == nil {
		t.Fatalf("expected completed status with CompletedAt set, got %+v", snap)
	}
}

func TestRecordMarkFailedSetsError(t *testing.T) {
	reg := NewRegistry()
	r := reg.create("src1", chunk.SourceDocument, 1)
	r.markRunning()
	r.markFailed("internal error during job execution")

	snap, _ := reg.Get(r.ID)
	if snap.Status != StatusFailed {
		t.Errorf("expected failed status, got %s", snap.Status)
	}
	if snap.Error != "internal error during job execution" {
		t.Errorf("expected the failure message preserved, got %q", snap.Error)
	}
}

func TestRunningCountReflectsOnlyRunningJobs(t *testing.T) {
	reg := NewRegistry()
	a := reg.create("src1", chunk.SourceDocument, 1)
	b := reg.create("src2", chunk.SourceDocument, 1)
	reg.create("src3", chunk.SourceDocument, 1) // stays pending

	a.markRunning()
	b.markRunning()
	if got := reg.RunningCount(); got != 2 {
		t.Errorf("expected RunningCount=2, got %d", got)
	}

	a.markCompleted()
	if got := reg.RunningCount(); got != 1 {
		t.Errorf("expected RunningCount=1 after one job completes, got %d", got)
	}
}

func TestLogActivityBoundedAndOrdered(t *testing.T) {
	reg := NewRegistry()
	r := reg.create("src1", chunk.SourceDocument, 1)

	for i := 0; i < maxActivityEntries+10; i++ {
		r.logActivity("chunked", "item")
	}
	snap, _ := reg.Get(r.ID)
	if len(snap.Activity) > activityDisplayLimit {
		t.Errorf("expected at most %d entries surfaced, got %d", activityDisplayLimit, len(snap.Activity))
	}

	r2 := reg.create("src2", chunk.SourceDocument, 1)
	r2.logActivity("started", "first")
	r2.logActivity("chunked", "second")
	snap2, _ := reg.Get(r2.ID)
	if len(snap2.Activity) != 2 || snap2.Activity[0].Action != "started" || snap2.Activity[1].Action != "chunked" {
		t.Fatalf("expected activity entries in insertion order, got %+v", snap2.Activity)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	a := generateID()
	b := generateID()
	if a == b {
		t.Error("expected generateID to produce unique IDs")
	}
	if a == "" {
		t.Error("expected a non-empty ID")
	}
}
