package ranking

import "errors"

// Sentinel kinds for sort parameter parsing.
var (
	ErrUnknownKey       = errors.New("unknown sort key")
	ErrUnknownDirection = errors.New("unknown sort direction")
)
