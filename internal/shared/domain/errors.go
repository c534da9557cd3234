package domain

import "errors"

// ErrVersionConflict is returned by repositories when a conditional update
// loses an optimistic-concurrency race. Callers re-read and retry, or report
// the item as a failed outcome in a sweep.
var ErrVersionConflict = errors.New("aggregate version conflict")
