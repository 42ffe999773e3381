package tracker

import (
	"context"
	"time"

	"github.com/jghoshh/ascent/lib/progress"
	"github.com/jghoshh/ascent/models"
)

// TaskSummary projects today's active tasks into the flat shape consumed by
// widget-style views: overall completion, the first incomplete task and the
// full list. It reuses the active-task read path, including its fallback
// cache behavior.
func (t *Tracker) TaskSummary(ctx context.Context) (*models.TaskSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks, err := t.activeTasksLocked(ctx)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, task := range tasks {
		if task.Completed {
			completed++
		}
	}

	summary := &models.TaskSummary{
		Date:                 time.Now().UTC().Format("2006-01-02"),
		CompletionPercent:    progress.ToPercent(completed, len(tasks)),
		TotalActiveTasks:     len(tasks),
		CompletedActiveTasks: completed,
		Tasks:                cloneTasks(tasks),
	}

	for i := range tasks {
		if !tasks[i].Completed {
			next := tasks[i]
			summary.NextIncompleteTask = &next
			break
		}
	}
	return summary, nil
}
