package processor

import "fmt"

// FetchError marks a failure reading raw rows for one source. It is
// contained by that source's savepoint; sibling sources keep running.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch raw window: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError marks a failure writing canonical rows. Persist failures
// are not containable: the enclosing period transaction must roll back,
// so ProcessDay surfaces them as its error return.
type PersistError struct {
	Source string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: persist hourly records: %v", e.Source, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
