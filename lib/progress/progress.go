package progress

import (
	"math"
	"sort"

	"github.com/jghoshh/ascent/models"
)

// ToPercent converts a completed/total ratio to a whole percentage using
// round-half-up, clamped to [0,100]. A zero denominator yields 0. This is the
// single percent computation used everywhere: goal trees, task summaries and
// calendar consumers all go through it.
func ToPercent(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	percent := int(math.Round(float64(numerator) / float64(denominator) * 100))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Decorate computes completion percentages bottom-up through a loaded goal
// tree and sorts every sibling level by order index. It is pure: the input
// tree is left untouched and a decorated copy is returned.
//
// A medium goal marked completed is 100 regardless of its tasks; otherwise
// its percentage is the ratio of completed tasks over total tasks (0 when it
// has none). A big goal's percentage is the rounded mean of its medium goals'
// percentages (0 when it has none).
func Decorate(tree []models.GoalTree) []models.GoalTree {
	out := make([]models.GoalTree, len(tree))
	for i, goal := range tree {
		mediums := make([]models.MediumGoalNode, len(goal.MediumGoals))
		copy(mediums, goal.MediumGoals)
		sort.SliceStable(mediums, func(a, b int) bool {
			return mediums[a].OrderIndex < mediums[b].OrderIndex
		})

		percentSum := 0
		for j := range mediums {
			tasks := append([]models.DailyTask(nil), mediums[j].DailyTasks...)
			sort.SliceStable(tasks, func(a, b int) bool {
				return tasks[a].OrderIndex < tasks[b].OrderIndex
			})
			mediums[j].DailyTasks = tasks

			if mediums[j].IsCompleted {
				mediums[j].CompletionPercent = 100
			} else {
				completed := 0
				for _, task := range tasks {
					if task.Completed {
						completed++
					}
				}
				mediums[j].CompletionPercent = ToPercent(completed, len(tasks))
			}
			percentSum += mediums[j].CompletionPercent
		}

		goal.MediumGoals = mediums
		if len(mediums) == 0 {
			goal.CompletionPercent = 0
		} else {
			goal.CompletionPercent = int(math.Round(float64(percentSum) / float64(len(mediums))))
		}
		out[i] = goal
	}
	return out
}
