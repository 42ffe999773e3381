package order

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// Item is the sibling view the reorder planner operates on: an entity id and
// its current order index within the sibling set.
type Item struct {
	ID         primitive.ObjectID
	OrderIndex int
}

// WithReorderedIndexes returns a copy of items where each item whose id
// appears in orderedIDs gets an OrderIndex equal to its position in
// orderedIDs. orderedIDs is the desired order, not a sorted list. Items whose
// id is absent from orderedIDs keep their current index; that only happens
// when the caller's view of the sibling set is stale. The input slices are
// never modified.
func WithReorderedIndexes(items []Item, orderedIDs []primitive.ObjectID) []Item {
	indexByID := make(map[primitive.ObjectID]int, len(orderedIDs))
	for i, id := range orderedIDs {
		indexByID[id] = i
	}

	out := make([]Item, len(items))
	for i, item := range items {
		if next, ok := indexByID[item.ID]; ok {
			item.OrderIndex = next
		}
		out[i] = item
	}
	return out
}

// WriteAtFunc writes a single entity's order index to the backing store.
type WriteAtFunc func(ctx context.Context, id primitive.ObjectID, index int) error

// PersistOrder applies a new sibling order to the store in two phases. Phase
// one parks every id on a distinct temporary negative index (-(position+1));
// phase two writes the final non-negative indexes. Order indexes are unique
// per sibling set in the store, so a direct single-phase rewrite could
// momentarily collide two rows on the same index while the permutation is in
// flight; the negative parking indexes can never collide with live ones.
//
// Within a phase the per-id writes run concurrently and complete in any
// order. Phase two only starts after every phase-one write succeeded. If any
// write fails the whole operation fails and the error is returned for the
// caller to roll back; no partial retry is attempted.
func PersistOrder(ctx context.Context, ids []primitive.ObjectID, writeAt WriteAtFunc) error {
	if err := writePhase(ctx, ids, writeAt, func(pos int) int { return -(pos + 1) }); err != nil {
		return err
	}
	return writePhase(ctx, ids, writeAt, func(pos int) int { return pos })
}

func writePhase(ctx context.Context, ids []primitive.ObjectID, writeAt WriteAtFunc, indexFor func(pos int) int) error {
	g, ctx := errgroup.WithContext(ctx)
	for pos, id := range ids {
		pos, id := pos, id
		g.Go(func() error {
			return writeAt(ctx, id, indexFor(pos))
		})
	}
	return g.Wait()
}
