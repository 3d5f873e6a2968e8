package records

import "errors"

// ErrUnavailable wraps any failure reading the record store.
var ErrUnavailable = errors.New("record store unavailable")
