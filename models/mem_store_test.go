package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newPendingJob(t *testing.T, store *MemStore) *Job {
	t.Helper()
	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: uuid.NewString(),
		StageType: StageScript,
		Status:    JobStatusPending,
		Payload:   JobPayload{Script: &ScriptPayload{SlideID: "s1", Content: "hello"}},
	}
	if err := store.CreateJob(job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestJobProgressIsMonotonic(t *testing.T) {
	store := NewMemStore()
	job := newPendingJob(t, store)

	if applied, _ := store.ApplyJobProgress(job.ID, 10); applied {
		t.Fatal("progress applied to pending job")
	}
	if applied, _ := store.MarkJobRunning(job.ID, time.Now()); !applied {
		t.Fatal("mark running rejected")
	}
	if applied, _ := store.ApplyJobProgress(job.ID, 30); !applied {
		t.Fatal("progress 30 rejected")
	}
	if applied, _ := store.ApplyJobProgress(job.ID, 10); applied {
		t.Fatal("progress regression accepted")
	}
	got, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Progress != 30 {
		t.Fatalf("progress = %d, want 30", got.Progress)
	}
}

func TestJobTerminalTransitionsAreFinal(t *testing.T) {
	store := NewMemStore()
	job := newPendingJob(t, store)
	store.MarkJobRunning(job.ID, time.Now())

	if applied, _ := store.MarkJobTerminal(job.ID, JobStatusCompleted, &JobResult{ResourceType: "script"}, "", "", time.Now()); !applied {
		t.Fatal("completion rejected")
	}
	if applied, _ := store.MarkJobTerminal(job.ID, JobStatusFailed, nil, "boom", ErrKindCollaborator, time.Now()); applied {
		t.Fatal("terminal job re-transitioned")
	}
	got, _ := store.GetJob(job.ID)
	if got.Status != JobStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Progress != 100 {
		t.Fatalf("progress = %d, want 100", got.Progress)
	}
	if got.Error != "" {
		t.Fatalf("error = %q, want empty", got.Error)
	}
}

func TestRenderEnqueuedWinsOnce(t *testing.T) {
	store := NewMemStore()
	p := &Project{ID: uuid.NewString(), OwnerID: "u1", Status: ProjectStatusProcessing}
	store.CreateProject(p)

	won, _ := store.TryMarkRenderEnqueued(p.ID)
	if !won {
		t.Fatal("first claim lost")
	}
	won, _ = store.TryMarkRenderEnqueued(p.ID)
	if won {
		t.Fatal("second claim won")
	}
}

func TestProjectKeepsFirstError(t *testing.T) {
	store := NewMemStore()
	p := &Project{ID: uuid.NewString(), OwnerID: "u1", Status: ProjectStatusProcessing}
	store.CreateProject(p)

	if applied, _ := store.MarkProjectFailed(p.ID, "first failure"); !applied {
		t.Fatal("first failure rejected")
	}
	if applied, _ := store.MarkProjectFailed(p.ID, "second failure"); applied {
		t.Fatal("terminal project re-failed")
	}
	got, _ := store.GetProject(p.ID)
	if got.Error != "first failure" {
		t.Fatalf("error = %q, want first failure", got.Error)
	}
	if applied, _ := store.MarkProjectCompleted(p.ID); applied {
		t.Fatal("failed project completed")
	}
}

func TestReplaceScriptKeepsOneActive(t *testing.T) {
	store := NewMemStore()
	first := &Script{ID: uuid.NewString(), SlideID: "slide-1", Content: "v1"}
	second := &Script{ID: uuid.NewString(), SlideID: "slide-1", Content: "v2"}
	store.ReplaceScript(first)
	store.ReplaceScript(second)

	got, err := store.ScriptBySlide("slide-1")
	if err != nil {
		t.Fatalf("script by slide: %v", err)
	}
	if got.Content != "v2" {
		t.Fatalf("content = %q, want v2", got.Content)
	}
	if _, err := store.GetScript(first.ID); err == nil {
		t.Fatal("replaced script still readable")
	}
}

func TestCountSlidesMissingAudio(t *testing.T) {
	store := NewMemStore()
	projectID := uuid.NewString()
	slides := []Slide{
		{ID: "a", ProjectID: projectID, Order: 1},
		{ID: "b", ProjectID: projectID, Order: 2},
	}
	store.CreateSlides(slides)

	n, _ := store.CountSlidesMissingAudio(projectID)
	if n != 2 {
		t.Fatalf("missing = %d, want 2", n)
	}
	store.SetSlideAudio("a", "mem://audio-a", 4.0)
	n, _ = store.CountSlidesMissingAudio(projectID)
	if n != 1 {
		t.Fatalf("missing = %d, want 1", n)
	}
	slide, _ := store.GetSlide("a")
	if slide.DurationSec != 4.0 {
		t.Fatalf("duration = %v, want 4", slide.DurationSec)
	}
	store.SetSlideAudio("b", "mem://audio-b", 3.0)
	n, _ = store.CountSlidesMissingAudio(projectID)
	if n != 0 {
		t.Fatalf("missing = %d, want 0", n)
	}
}
