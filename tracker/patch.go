package tracker

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/lib/order"
	"github.com/jghoshh/ascent/lib/progress"
	"github.com/jghoshh/ascent/models"
)

// The patchers below apply a mutation's effect to whichever cache slots are
// currently loaded, always on fresh copies so restoring a snapshot cannot
// observe half-patched data. A slot that is not loaded is left alone; the
// post-success invalidation re-fetches it anyway.

// cloneTree deep-copies the tree down to the task slices.
func cloneTree(tree []models.GoalTree) []models.GoalTree {
	out := make([]models.GoalTree, len(tree))
	for i, goal := range tree {
		mediums := make([]models.MediumGoalNode, len(goal.MediumGoals))
		for j, medium := range goal.MediumGoals {
			medium.DailyTasks = append([]models.DailyTask(nil), medium.DailyTasks...)
			mediums[j] = medium
		}
		goal.MediumGoals = mediums
		out[i] = goal
	}
	return out
}

func cloneTasks(tasks []models.ActiveTask) []models.ActiveTask {
	return append([]models.ActiveTask(nil), tasks...)
}

// taskCompleted reports the cached completion state of a task, preferring the
// active-task slot and falling back to the tree.
func (t *Tracker) taskCompleted(taskID primitive.ObjectID) (completed, known bool) {
	if tasks, ok := t.tasks.get(); ok {
		for _, task := range tasks {
			if task.ID == taskID {
				return task.Completed, true
			}
		}
	}
	if tree, ok := t.tree.get(); ok {
		for _, goal := range tree {
			for _, medium := range goal.MediumGoals {
				for _, task := range medium.DailyTasks {
					if task.ID == taskID {
						return task.Completed, true
					}
				}
			}
		}
	}
	return false, false
}

func (t *Tracker) patchTaskCompleted(taskID primitive.ObjectID, completed bool) {
	if tree, ok := t.tree.get(); ok {
		patched := cloneTree(tree)
		for i := range patched {
			for j := range patched[i].MediumGoals {
				tasks := patched[i].MediumGoals[j].DailyTasks
				for k := range tasks {
					if tasks[k].ID == taskID {
						tasks[k].Completed = completed
					}
				}
			}
		}
		// Percentages depend on task state; re-decorate the patched tree.
		t.tree.set(progress.Decorate(patched))
	}

	if tasks, ok := t.tasks.get(); ok {
		patched := cloneTasks(tasks)
		for i := range patched {
			if patched[i].ID == taskID {
				patched[i].Completed = completed
			}
		}
		t.tasks.set(patched)
	}
}

func (t *Tracker) patchMediumCompletion(mediumGoalID primitive.ObjectID, completed bool, completedAt *time.Time) {
	if tree, ok := t.tree.get(); ok {
		patched := cloneTree(tree)
		for i := range patched {
			for j := range patched[i].MediumGoals {
				if patched[i].MediumGoals[j].ID == mediumGoalID {
					patched[i].MediumGoals[j].IsCompleted = completed
					patched[i].MediumGoals[j].CompletedAt = completedAt
				}
			}
		}
		t.tree.set(progress.Decorate(patched))
	}

	if tasks, ok := t.tasks.get(); ok {
		if completed {
			// The goal's tasks leave the active view.
			patched := make([]models.ActiveTask, 0, len(tasks))
			for _, task := range tasks {
				if task.MediumGoalID != mediumGoalID {
					patched = append(patched, task)
				}
			}
			t.tasks.set(patched)
		} else {
			// Re-activated tasks can't be reconstructed from this slot;
			// drop it and let the next read fetch them.
			t.tasks.invalidate()
		}
	}
}

func (t *Tracker) patchTaskRemoved(taskID primitive.ObjectID) {
	if tree, ok := t.tree.get(); ok {
		patched := cloneTree(tree)
		for i := range patched {
			for j := range patched[i].MediumGoals {
				tasks := patched[i].MediumGoals[j].DailyTasks
				kept := make([]models.DailyTask, 0, len(tasks))
				for _, task := range tasks {
					if task.ID != taskID {
						kept = append(kept, task)
					}
				}
				patched[i].MediumGoals[j].DailyTasks = kept
			}
		}
		t.tree.set(progress.Decorate(patched))
	}

	if tasks, ok := t.tasks.get(); ok {
		patched := make([]models.ActiveTask, 0, len(tasks))
		for _, task := range tasks {
			if task.ID != taskID {
				patched = append(patched, task)
			}
		}
		t.tasks.set(patched)
	}
}

func (t *Tracker) patchBigGoalOrder(orderedIDs []primitive.ObjectID) {
	tree, treeLoaded := t.tree.get()
	if !treeLoaded {
		return
	}

	patched := cloneTree(tree)
	items := make([]order.Item, len(patched))
	for i, goal := range patched {
		items[i] = order.Item{ID: goal.ID, OrderIndex: goal.OrderIndex}
	}
	items = order.WithReorderedIndexes(items, orderedIDs)
	for i := range patched {
		patched[i].OrderIndex = items[i].OrderIndex
	}
	sort.SliceStable(patched, func(i, j int) bool {
		return patched[i].OrderIndex < patched[j].OrderIndex
	})
	t.tree.set(patched)

	// Active tasks carry their big goal's order key; remap it through the
	// medium goals of the patched tree.
	if tasks, ok := t.tasks.get(); ok {
		bigOrderByMedium := make(map[primitive.ObjectID]int)
		for _, goal := range patched {
			for _, medium := range goal.MediumGoals {
				bigOrderByMedium[medium.ID] = goal.OrderIndex
			}
		}
		patchedTasks := cloneTasks(tasks)
		for i := range patchedTasks {
			if bigOrder, ok := bigOrderByMedium[patchedTasks[i].MediumGoalID]; ok {
				patchedTasks[i].BigGoalOrder = bigOrder
			}
		}
		sortActiveTasks(patchedTasks)
		t.tasks.set(patchedTasks)
	}
}

func (t *Tracker) patchMediumGoalOrder(bigGoalID primitive.ObjectID, orderedIDs []primitive.ObjectID) {
	if tree, ok := t.tree.get(); ok {
		patched := cloneTree(tree)
		if goal := findGoal(patched, bigGoalID); goal != nil {
			items := make([]order.Item, len(goal.MediumGoals))
			for i, medium := range goal.MediumGoals {
				items[i] = order.Item{ID: medium.ID, OrderIndex: medium.OrderIndex}
			}
			items = order.WithReorderedIndexes(items, orderedIDs)
			for i := range goal.MediumGoals {
				goal.MediumGoals[i].OrderIndex = items[i].OrderIndex
			}
			sort.SliceStable(goal.MediumGoals, func(i, j int) bool {
				return goal.MediumGoals[i].OrderIndex < goal.MediumGoals[j].OrderIndex
			})
		}
		t.tree.set(patched)
	}

	if tasks, ok := t.tasks.get(); ok {
		indexByID := make(map[primitive.ObjectID]int, len(orderedIDs))
		for i, id := range orderedIDs {
			indexByID[id] = i
		}
		patched := cloneTasks(tasks)
		for i := range patched {
			if next, ok := indexByID[patched[i].MediumGoalID]; ok {
				patched[i].MediumGoalOrder = next
			}
		}
		sortActiveTasks(patched)
		t.tasks.set(patched)
	}
}

func (t *Tracker) patchTaskOrder(mediumGoalID primitive.ObjectID, orderedIDs []primitive.ObjectID) {
	if tree, ok := t.tree.get(); ok {
		patched := cloneTree(tree)
		if medium := findMedium(patched, mediumGoalID); medium != nil {
			items := make([]order.Item, len(medium.DailyTasks))
			for i, task := range medium.DailyTasks {
				items[i] = order.Item{ID: task.ID, OrderIndex: task.OrderIndex}
			}
			items = order.WithReorderedIndexes(items, orderedIDs)
			for i := range medium.DailyTasks {
				medium.DailyTasks[i].OrderIndex = items[i].OrderIndex
			}
			sort.SliceStable(medium.DailyTasks, func(i, j int) bool {
				return medium.DailyTasks[i].OrderIndex < medium.DailyTasks[j].OrderIndex
			})
		}
		t.tree.set(patched)
	}

	if tasks, ok := t.tasks.get(); ok {
		indexByID := make(map[primitive.ObjectID]int, len(orderedIDs))
		for i, id := range orderedIDs {
			indexByID[id] = i
		}
		patched := cloneTasks(tasks)
		for i := range patched {
			if next, ok := indexByID[patched[i].ID]; ok {
				patched[i].OrderIndex = next
			}
		}
		sortActiveTasks(patched)
		t.tasks.set(patched)
	}
}
