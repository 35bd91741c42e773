package mo

import "errors"

// ErrNotFound is returned when an entity does not resolve to exactly one
// object in the registry, typically because it vanished between the
// triggering event and processing.
var ErrNotFound = errors.New("not found in registry")

// ErrLookupFailure is returned when a configured class or IT-system user key
// is absent from the registry vocabulary. This is a configuration problem and
// is never retried automatically.
var ErrLookupFailure = errors.New("registry vocabulary lookup failed")
