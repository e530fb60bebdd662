package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"foreman/pkg/models"
)

// pollUntil polls the board until the task reaches the wanted status or
// the deadline passes.
func pollUntil(t *testing.T, b *ProgressBoard, taskID string, want models.TaskStatus) models.ProgressUpdate {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		updates, err := b.PollProgress(context.Background())
		if err != nil {
			t.Fatalf("PollProgress: %v", err)
		}
		for _, u := range updates {
			if u.TaskID == taskID && u.Status == want {
				return u
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", taskID, want)
	return models.ProgressUpdate{}
}

func TestLocalWorkerReportsInProgressSynchronously(t *testing.T) {
	board := NewProgressBoard()
	release := make(chan struct{})
	w := NewLocalWorker("w1", nil, func(ctx context.Context, task *models.Task) (any, error) {
		<-release
		return nil, nil
	}, board)

	w.Execute(context.Background(), &models.Task{ID: "t1"})

	// The in_progress report must be visible before the task function
	// finishes; no waiting loop here.
	updates, err := board.PollProgress(context.Background())
	if err != nil {
		t.Fatalf("PollProgress: %v", err)
	}
	if len(updates) != 1 || updates[0].Status != models.TaskStatusInProgress {
		t.Errorf("updates = %+v, want an immediate in_progress report", updates)
	}
	close(release)
}

func TestLocalWorkerReportsCompletion(t *testing.T) {
	board := NewProgressBoard()
	w := NewLocalWorker("w1", []string{"go"}, func(ctx context.Context, task *models.Task) (any, error) {
		return "result for " + task.ID, nil
	}, board)

	w.Execute(context.Background(), &models.Task{ID: "t1"})
	update := pollUntil(t, board, "t1", models.TaskStatusCompleted)
	if update.Result != "result for t1" {
		t.Errorf("result = %v", update.Result)
	}

	m := w.Metrics()
	if m.TasksStarted != 1 || m.TasksCompleted != 1 || m.TasksFailed != 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLocalWorkerReportsFailure(t *testing.T) {
	board := NewProgressBoard()
	w := NewLocalWorker("w1", nil, func(ctx context.Context, task *models.Task) (any, error) {
		return nil, errors.New("no disk space")
	}, board)

	w.Execute(context.Background(), &models.Task{ID: "t1"})
	update := pollUntil(t, board, "t1", models.TaskStatusFailed)
	if update.Error != "no disk space" {
		t.Errorf("error = %q", update.Error)
	}

	m := w.Metrics()
	if m.TasksStarted != 1 || m.TasksFailed != 1 || m.TasksCompleted != 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLocalWorkerCapabilitiesCopy(t *testing.T) {
	w := NewLocalWorker("w1", []string{"go"}, nil, NewProgressBoard())
	caps := w.Capabilities()
	caps[0] = "mutated"
	if w.Capabilities()[0] != "go" {
		t.Error("Capabilities must return a copy")
	}
}
