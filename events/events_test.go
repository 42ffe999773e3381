package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBody(t *testing.T) {
	userID := primitive.NewObjectID()
	before := time.Now().UTC()

	body, err := Body(KindTreeInvalidated, userID)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, KindTreeInvalidated, event.Kind)
	assert.Equal(t, userID, event.UserID)
	assert.False(t, event.At.Before(before))
	assert.False(t, event.At.After(time.Now().UTC()))
}
