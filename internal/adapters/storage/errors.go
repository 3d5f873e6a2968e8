package storage

import "errors"

// ErrUploadFailed wraps any failure writing to the object store.
var ErrUploadFailed = errors.New("object store upload failed")
