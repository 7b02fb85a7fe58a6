package health

import "errors"

// ErrInvalidTimestamp is returned when a record timestamp cannot be parsed.
var ErrInvalidTimestamp = errors.New("health: invalid timestamp")
