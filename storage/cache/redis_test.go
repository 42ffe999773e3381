package cache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/models"
)

func TestDecodeTasks(t *testing.T) {
	id := primitive.NewObjectID()
	payload := []byte(`[{"id":"` + id.Hex() + `","title":"stretch","completed":true,"order_index":2,"big_goal_order":1,"medium_goal_order":0}]`)

	tasks := decodeTasks(payload)
	if assert.Len(t, tasks, 1) {
		assert.Equal(t, id, tasks[0].ID)
		assert.Equal(t, "stretch", tasks[0].Title)
		assert.True(t, tasks[0].Completed)
		assert.Equal(t, 2, tasks[0].OrderIndex)
		assert.Equal(t, 1, tasks[0].BigGoalOrder)
	}
}

func TestDecodeTasksCorruptPayload(t *testing.T) {
	assert.Nil(t, decodeTasks([]byte(`{"not":"a list"`)))
	assert.Nil(t, decodeTasks([]byte(`garbage`)))
}

func TestDecodeTasksOlderPayload(t *testing.T) {
	// A snapshot written before the order keys existed still decodes; the
	// missing fields come back as zero values.
	tasks := decodeTasks([]byte(`[{"title":"old","completed":false}]`))
	if assert.Len(t, tasks, 1) {
		assert.Equal(t, "old", tasks[0].Title)
		assert.Equal(t, 0, tasks[0].OrderIndex)
		assert.Equal(t, 0, tasks[0].BigGoalOrder)
	}
}

func TestRedisTaskCacheRoundtrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set; skipping Redis integration test")
	}

	taskCache := NewRedisTaskCache()
	if err := taskCache.Connect(redisURL); err != nil {
		t.Fatalf("Error connecting to Redis: %v", err)
	}
	defer taskCache.Disconnect()

	ctx := context.Background()
	userID := primitive.NewObjectID()

	// A user with no snapshot reads back empty.
	tasks, err := taskCache.Read(ctx, userID)
	assert.NoError(t, err)
	assert.Empty(t, tasks)

	stored := []models.ActiveTask{
		{DailyTask: models.DailyTask{ID: primitive.NewObjectID(), Title: "run"}, BigGoalOrder: 1},
		{DailyTask: models.DailyTask{ID: primitive.NewObjectID(), Title: "read", Completed: true}},
	}
	if err := taskCache.Persist(ctx, userID, stored); err != nil {
		t.Fatalf("Error persisting snapshot: %v", err)
	}

	tasks, err = taskCache.Read(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, stored, tasks)

	// Persisting again replaces the snapshot wholesale.
	if err := taskCache.Persist(ctx, userID, stored[:1]); err != nil {
		t.Fatalf("Error persisting snapshot: %v", err)
	}
	tasks, err = taskCache.Read(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, stored[:1], tasks)
}
