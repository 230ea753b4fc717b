package domain

import "errors"

// ErrNotFound indicates that the requested row does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because a newer version of the entity is already persisted.
var ErrConcurrencyConflict = errors.New("concurrency conflict")
