package tracker

// slot is a single transactional cache slot. Mutations snapshot the slot,
// patch it optimistically so readers observe the new state immediately, and
// either invalidate it once the store confirms the write or restore the
// snapshot when the write fails. Patches must work on fresh copies of the
// cached value so a restored snapshot never aliases optimistically-mutated
// data.
type slot[T any] struct {
	value  T
	loaded bool
}

func (s *slot[T]) get() (T, bool) {
	return s.value, s.loaded
}

func (s *slot[T]) set(value T) {
	s.value = value
	s.loaded = true
}

func (s *slot[T]) invalidate() {
	var zero T
	s.value = zero
	s.loaded = false
}

func (s *slot[T]) snapshot() slot[T] {
	return *s
}

func (s *slot[T]) restore(snap slot[T]) {
	*s = snap
}
