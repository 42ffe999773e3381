package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BigGoal is the top level of the goal hierarchy. A user's big goals are
// ordered among each other by OrderIndex.
type BigGoal struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	DueDate     *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`
	OrderIndex  int                `bson:"order_index" json:"order_index"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// MediumGoal is the middle level of the hierarchy. IsCompleted is an explicit
// manual override set by the user, never derived from the goal's tasks.
// CompletedAt is set when IsCompleted transitions to true and cleared when it
// transitions back to false.
type MediumGoal struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BigGoalID   primitive.ObjectID `bson:"big_goal_id" json:"big_goal_id"`
	Title       string             `bson:"title" json:"title"`
	DueDate     *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`
	IsCompleted bool               `bson:"is_completed" json:"is_completed"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	OrderIndex  int                `bson:"order_index" json:"order_index"`
}

// DailyTask is the leaf level. Completed is the task's current state; the
// per-day history lives in DailyTaskCheckin rows.
type DailyTask struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MediumGoalID primitive.ObjectID `bson:"medium_goal_id" json:"medium_goal_id"`
	Title        string             `bson:"title" json:"title"`
	Completed    bool               `bson:"completed" json:"completed"`
	OrderIndex   int                `bson:"order_index" json:"order_index"`
}

// DailyTaskCheckin records a task's completion state on a specific calendar
// day. At most one row exists per (TaskID, CheckinDate); writes are upserts.
// CheckinDate is an ISO date string (YYYY-MM-DD).
type DailyTaskCheckin struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TaskID      primitive.ObjectID `bson:"task_id" json:"task_id"`
	CheckinDate string             `bson:"checkin_date" json:"checkin_date"`
	Completed   bool               `bson:"completed" json:"completed"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// MediumGoalNode is a medium goal carrying its tasks and a derived completion
// percentage. The percentage is computed, never stored.
type MediumGoalNode struct {
	MediumGoal        `bson:",inline"`
	CompletionPercent int         `bson:"-" json:"completion_percent"`
	DailyTasks        []DailyTask `bson:"-" json:"daily_tasks"`
}

// GoalTree is the full ownership closure for one big goal: the goal, its
// medium goals and their tasks, ordered by OrderIndex at every level. It is a
// read-only projection reconstructed from the stored entities.
type GoalTree struct {
	BigGoal           `bson:",inline"`
	CompletionPercent int              `bson:"-" json:"completion_percent"`
	MediumGoals       []MediumGoalNode `bson:"-" json:"medium_goals"`
}

// ActiveTask is a daily task whose parent medium goal is not completed,
// joined with the parent order keys needed for a stable display order.
type ActiveTask struct {
	DailyTask       `bson:",inline"`
	BigGoalOrder    int `bson:"big_goal_order" json:"big_goal_order"`
	MediumGoalOrder int `bson:"medium_goal_order" json:"medium_goal_order"`
}

// TaskSummary is the flattened view of today's active tasks served to
// widget-style consumers.
type TaskSummary struct {
	Date                 string       `json:"date"`
	CompletionPercent    int          `json:"completion_percent"`
	TotalActiveTasks     int          `json:"total_active_tasks"`
	CompletedActiveTasks int          `json:"completed_active_tasks"`
	NextIncompleteTask   *ActiveTask  `json:"next_incomplete_task,omitempty"`
	Tasks                []ActiveTask `json:"tasks"`
}
