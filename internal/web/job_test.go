package web

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"radiobot/internal/media"
)

func TestCleanup(t *testing.T) {
	jm := NewJobManager()
	dir := t.TempDir()

	// Create an old completed job (2 hours ago) with a leftover file
	oldFile := filepath.Join(dir, "old.mp3")
	if err := os.WriteFile(oldFile, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := jm.CreateJob("old song", media.SourceYouTube, false)
	jm.UpdateJob(old.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Outcome = &media.Outcome{FilePath: oldFile}
	})
	// Backdate CompletedAt
	jm.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	jm.jobs[old.ID].CompletedAt = &past
	jm.mu.Unlock()

	// Create a recent completed job (just now)
	recent := jm.CreateJob("recent song", media.SourceYouTube, false)
	jm.UpdateJob(recent.ID, func(j *Job) {
		j.Status = StatusCompleted
	})

	// Create a running job (should never be cleaned)
	running := jm.CreateJob("running song", media.SourceYouTube, false)
	jm.UpdateJob(running.ID, func(j *Job) {
		j.Status = StatusRunning
	})

	jm.cleanup()

	if _, err := jm.GetJob(old.ID); err == nil {
		t.Error("old completed job should have been cleaned up")
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old job's file should have been removed")
	}
	if _, err := jm.GetJob(recent.ID); err != nil {
		t.Error("recent completed job should NOT have been cleaned up")
	}
	if _, err := jm.GetJob(running.ID); err != nil {
		t.Error("running job should NOT have been cleaned up")
	}
}

func TestCreateJobUniqueIDs(t *testing.T) {
	jm := NewJobManager()

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job := jm.CreateJob("some song", media.SourceYouTube, false)
		if ids[job.ID] {
			t.Fatalf("duplicate job ID: %s", job.ID)
		}
		ids[job.ID] = true
	}
}

func TestUpdateJobTimestamps(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("some song", media.SourceYouTube, false)

	if job.StartedAt != nil {
		t.Error("pending job already has a start time")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusRunning })
	got, _ := jm.GetJob(job.ID)
	if got.StartedAt == nil {
		t.Error("running job has no start time")
	}
	if got.CompletedAt != nil {
		t.Error("running job already has a completion time")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusCompleted })
	got, _ = jm.GetJob(job.ID)
	if got.CompletedAt == nil {
		t.Error("completed job has no completion time")
	}
}

func TestJobReadsAreSnapshots(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("some song", media.SourceYouTube, false)

	got, err := jm.GetJob(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	listed := jm.ListJobs()
	updates := jm.Subscribe(job.ID)

	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusRunning })
	update := <-updates
	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusCompleted })

	// Earlier reads keep the state they observed, unaffected by later updates.
	if got.Status != StatusPending {
		t.Errorf("GetJob result changed under a later update: %s", got.Status)
	}
	if listed[0].Status != StatusPending {
		t.Errorf("ListJobs result changed under a later update: %s", listed[0].Status)
	}
	if update.Status != StatusRunning {
		t.Errorf("listener update changed under a later update: %s", update.Status)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("some song", media.SourceYouTube, false)

	updates := jm.Subscribe(job.ID)
	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusRunning })

	select {
	case got := <-updates:
		if got.Status != StatusRunning {
			t.Errorf("update status = %s", got.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	jm.Unsubscribe(job.ID, updates)
	if _, ok := <-updates; ok {
		t.Error("channel not closed after unsubscribe")
	}
}
