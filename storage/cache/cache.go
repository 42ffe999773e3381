package cache

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/models"
)

// TaskCacheInterface is the durable last-known-good snapshot of a user's
// active-task list, consulted when the authoritative store is unreachable.
// It is advisory: Read degrades to an empty list rather than failing, and
// consumers must work correctly with an empty result.
type TaskCacheInterface interface {
	Connect(url string) error
	Disconnect() error
	Persist(ctx context.Context, userID primitive.ObjectID, tasks []models.ActiveTask) error
	Read(ctx context.Context, userID primitive.ObjectID) ([]models.ActiveTask, error)
}

// NewTaskCache creates a new TaskCacheInterface with a Redis backend.
// It connects to the provided address, and returns the cache instance or
// an error if the connection failed.
func NewTaskCache(url string) (TaskCacheInterface, error) {
	taskCache := NewRedisTaskCache()
	err := taskCache.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task cache: %w", err)
	}
	return taskCache, nil
}
