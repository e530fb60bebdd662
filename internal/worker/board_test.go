package worker

import (
	"context"
	"testing"

	"foreman/pkg/models"
)

func TestBoardKeepsLatestUpdatePerTask(t *testing.T) {
	b := NewProgressBoard()
	b.Report(models.ProgressUpdate{TaskID: "t1", Status: models.TaskStatusInProgress})
	b.Report(models.ProgressUpdate{TaskID: "t1", Status: models.TaskStatusCompleted, Result: "done"})

	updates, err := b.PollProgress(context.Background())
	if err != nil {
		t.Fatalf("PollProgress: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if updates[0].Status != models.TaskStatusCompleted || updates[0].Result != "done" {
		t.Errorf("update = %+v, want the latest report", updates[0])
	}
}

func TestBoardRetryReplacesTerminalEntry(t *testing.T) {
	b := NewProgressBoard()
	b.Report(models.ProgressUpdate{TaskID: "t1", Status: models.TaskStatusFailed, Error: "boom"})
	// A retried task starts a fresh execution.
	b.Report(models.ProgressUpdate{TaskID: "t1", Status: models.TaskStatusInProgress})

	updates, err := b.PollProgress(context.Background())
	if err != nil {
		t.Fatalf("PollProgress: %v", err)
	}
	if updates[0].Status != models.TaskStatusInProgress {
		t.Errorf("status = %q, want in_progress after retry", updates[0].Status)
	}
	if updates[0].Error != "" {
		t.Errorf("stale error %q survived the retry report", updates[0].Error)
	}
}

func TestBoardIgnoresEmptyTaskID(t *testing.T) {
	b := NewProgressBoard()
	b.Report(models.ProgressUpdate{Status: models.TaskStatusCompleted})

	updates, err := b.PollProgress(context.Background())
	if err != nil {
		t.Fatalf("PollProgress: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("got %d updates, want none for an empty task id", len(updates))
	}
}

func TestBoardPollHonorsContext(t *testing.T) {
	b := NewProgressBoard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.PollProgress(ctx); err == nil {
		t.Error("PollProgress with a canceled context must fail")
	}
}
