package tracker

import "fmt"

// FetchError reports that the backing store was unreachable or returned an
// error on a read. LoadActiveTasks recovers from it via the fallback task
// cache; every other read surfaces it.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports that a create, update or delete against the backing
// store failed. For optimistic mutations the cache has already been restored
// to its pre-mutation snapshot by the time this error is returned.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
