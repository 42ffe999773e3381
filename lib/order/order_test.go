package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newIDs(n int) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, n)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
	}
	return ids
}

func TestWithReorderedIndexes(t *testing.T) {
	ids := newIDs(3)
	items := []Item{
		{ID: ids[0], OrderIndex: 0},
		{ID: ids[1], OrderIndex: 1},
		{ID: ids[2], OrderIndex: 2},
	}
	desired := []primitive.ObjectID{ids[2], ids[0], ids[1]}

	result := WithReorderedIndexes(items, desired)

	// Reading the result back in ascending order index must reproduce the
	// desired order exactly.
	sorted := append([]Item(nil), result...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })
	got := make([]primitive.ObjectID, len(sorted))
	for i, item := range sorted {
		got[i] = item.ID
	}
	assert.Equal(t, desired, got)

	// The input is never modified.
	assert.Equal(t, 0, items[0].OrderIndex)
	assert.Equal(t, 1, items[1].OrderIndex)
	assert.Equal(t, 2, items[2].OrderIndex)
}

func TestWithReorderedIndexesLeavesUnknownIDsAlone(t *testing.T) {
	ids := newIDs(3)
	items := []Item{
		{ID: ids[0], OrderIndex: 0},
		{ID: ids[1], OrderIndex: 1},
		{ID: ids[2], OrderIndex: 7},
	}

	// A stale client view omits the third item; its index must survive.
	result := WithReorderedIndexes(items, []primitive.ObjectID{ids[1], ids[0]})

	assert.Equal(t, 1, result[0].OrderIndex)
	assert.Equal(t, 0, result[1].OrderIndex)
	assert.Equal(t, 7, result[2].OrderIndex)
}

func TestWithReorderedIndexesEmpty(t *testing.T) {
	assert.Empty(t, WithReorderedIndexes(nil, newIDs(2)))
	items := []Item{{ID: primitive.NewObjectID(), OrderIndex: 4}}
	assert.Equal(t, items, WithReorderedIndexes(items, nil))
}

// writeLog records every writeAt call in arrival order so tests can assert
// on phase boundaries.
type writeLog struct {
	mu      sync.Mutex
	indexes []int
	failAt  map[int]error
}

func (l *writeLog) writeAt(_ context.Context, _ primitive.ObjectID, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.failAt[index]; ok {
		return err
	}
	l.indexes = append(l.indexes, index)
	return nil
}

func TestPersistOrderTwoPhases(t *testing.T) {
	ids := newIDs(4)
	log := &writeLog{}

	err := PersistOrder(context.Background(), ids, log.writeAt)
	require.NoError(t, err)
	require.Len(t, log.indexes, 2*len(ids))

	// Phase one: all writes negative and pairwise distinct, observed before
	// any phase-two write.
	phaseOne := append([]int(nil), log.indexes[:len(ids)]...)
	sort.Ints(phaseOne)
	assert.Equal(t, []int{-4, -3, -2, -1}, phaseOne)

	phaseTwo := append([]int(nil), log.indexes[len(ids):]...)
	sort.Ints(phaseTwo)
	assert.Equal(t, []int{0, 1, 2, 3}, phaseTwo)
}

func TestPersistOrderAbortsOnPhaseOneFailure(t *testing.T) {
	ids := newIDs(3)
	wantErr := errors.New("unique constraint violated")
	log := &writeLog{failAt: map[int]error{-2: wantErr}}

	err := PersistOrder(context.Background(), ids, log.writeAt)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)

	// Phase two never starts: no non-negative index was ever written.
	for _, index := range log.indexes {
		assert.Less(t, index, 0)
	}
}

func TestPersistOrderSurfacesPhaseTwoFailure(t *testing.T) {
	ids := newIDs(3)
	wantErr := errors.New("write refused")
	log := &writeLog{failAt: map[int]error{1: wantErr}}

	err := PersistOrder(context.Background(), ids, log.writeAt)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestPersistOrderNoIDs(t *testing.T) {
	log := &writeLog{}
	require.NoError(t, PersistOrder(context.Background(), nil, log.writeAt))
	assert.Empty(t, log.indexes)
}
