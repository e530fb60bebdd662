package main

import (
	"context"
	"fmt"
	"strings"

	"foreman/internal/config"
	"foreman/internal/oracle"
	"foreman/internal/worker"
	"foreman/pkg/models"
)

// defaultWorkerPrompt frames task execution calls for workers that do
// not configure their own prompt.
const defaultWorkerPrompt = `You are a worker in a task orchestration system. Complete the task you are given and reply with the result only.`

// taskPrompt renders a task for a worker call.
func taskPrompt(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Name)
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}
	if task.Error != "" {
		fmt.Fprintf(&b, "\nA previous attempt failed with: %s\nAvoid repeating that failure.\n", task.Error)
	}
	return b.String()
}

// registerWorkers builds the run's worker pool from configuration. Each
// configured worker executes tasks with a Claude call and reports to the
// shared progress board. With no workers configured, a single
// general-purpose worker is registered so every run has someone to
// delegate to.
func registerWorkers(registry *worker.Registry, board *worker.ProgressBoard, client *oracle.Client, configured []config.WorkerConfig) {
	if len(configured) == 0 {
		configured = []config.WorkerConfig{{ID: "general"}}
	}

	for _, wc := range configured {
		prompt := wc.Prompt
		if prompt == "" {
			prompt = defaultWorkerPrompt
		}
		fn := func(ctx context.Context, task *models.Task) (any, error) {
			return client.Complete(ctx, prompt, taskPrompt(task))
		}
		registry.Register(worker.NewLocalWorker(wc.ID, wc.Capabilities, fn, board))
	}
}
