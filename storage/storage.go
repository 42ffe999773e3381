package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/models"
)

// DeleteResult represents the result of a deletion operation,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement. Every read and write is scoped to a single
// owner; multi-tenant isolation is the backend's responsibility.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error
	// Loads a user's full goal tree, ordered by order index at every level.
	LoadGoalTree(ctx context.Context, userID primitive.ObjectID) ([]models.GoalTree, error)
	// Loads the user's daily tasks whose parent medium goal is not completed,
	// joined with the parent order keys.
	LoadActiveTasks(ctx context.Context, userID primitive.ObjectID) ([]models.ActiveTask, error)
	// Adds a new big goal.
	AddBigGoal(ctx context.Context, goal *models.BigGoal) (*models.BigGoal, error)
	// Adds a new medium goal under an existing big goal.
	AddMediumGoal(ctx context.Context, goal *models.MediumGoal) (*models.MediumGoal, error)
	// Adds a new daily task under an existing medium goal.
	AddDailyTask(ctx context.Context, task *models.DailyTask) (*models.DailyTask, error)
	// Deletes a daily task and its checkin history.
	DeleteDailyTask(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error)
	// Updates a daily task's current completion flag.
	SetTaskCompleted(ctx context.Context, id primitive.ObjectID, completed bool) error
	// Updates a medium goal's manual completion override. completedAt is
	// stored when completing and cleared when un-completing.
	SetMediumGoalCompletion(ctx context.Context, id primitive.ObjectID, completed bool, completedAt *time.Time) error
	// Rewrites one big goal's order index.
	SetBigGoalOrderIndex(ctx context.Context, id primitive.ObjectID, index int) error
	// Rewrites one medium goal's order index.
	SetMediumGoalOrderIndex(ctx context.Context, id primitive.ObjectID, index int) error
	// Rewrites one daily task's order index.
	SetTaskOrderIndex(ctx context.Context, id primitive.ObjectID, index int) error
	// Upserts the checkin row for (task, date); writing the same pair twice
	// updates the existing row instead of inserting a duplicate.
	UpsertCheckin(ctx context.Context, checkin *models.DailyTaskCheckin) error
	// Finds checkins for the given tasks within [from, to] inclusive, both
	// ISO dates.
	FindCheckins(ctx context.Context, taskIDs []primitive.ObjectID, from, to string) ([]models.DailyTaskCheckin, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
