package cache

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/models"
)

const taskKeyPrefix = "ascent:active-tasks:"

// RedisTaskCache is a struct representing a Redis-backed task snapshot cache.
// Entries carry no TTL: the snapshot is a last-known-good fallback and stays
// valid until the next successful fetch overwrites it.
type RedisTaskCache struct {
	client *redis.Client
}

// NewRedisTaskCache creates a new instance of RedisTaskCache.
// This function doesn't establish a connection to the Redis server.
// To connect to the server, use the Connect method of the returned instance.
func NewRedisTaskCache() *RedisTaskCache {
	return &RedisTaskCache{}
}

// Connect establishes a connection to the Redis backend.
func (r *RedisTaskCache) Connect(redisURL string) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	r.client = redis.NewClient(opt)

	_, err = r.client.Ping(context.Background()).Result()
	return err
}

// Disconnect closes the connection to the Redis server.
func (r *RedisTaskCache) Disconnect() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func taskKey(userID primitive.ObjectID) string {
	return taskKeyPrefix + userID.Hex()
}

// Persist stores the most recent successfully-fetched active-task list for
// the user, replacing any previous snapshot.
func (r *RedisTaskCache) Persist(ctx context.Context, userID primitive.ObjectID, tasks []models.ActiveTask) error {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, taskKey(userID), payload, 0).Err()
}

// Read returns the last stored list for the user, or an empty list if no
// snapshot exists. A corrupt or older-schema payload also degrades to an
// empty list rather than an error; only a Redis transport failure is
// surfaced.
func (r *RedisTaskCache) Read(ctx context.Context, userID primitive.ObjectID) ([]models.ActiveTask, error) {
	payload, err := r.client.Get(ctx, taskKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return decodeTasks(payload), nil
}

// decodeTasks parses a stored snapshot. Unparseable payloads yield an empty
// list; fields absent from older payloads (such as order_index) decode to
// their zero values.
func decodeTasks(payload []byte) []models.ActiveTask {
	var tasks []models.ActiveTask
	if err := json.Unmarshal(payload, &tasks); err != nil {
		return nil
	}
	return tasks
}
