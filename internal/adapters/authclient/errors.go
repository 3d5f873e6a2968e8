package authclient

import "errors"

// ErrAuthExpired means a request was retried once with a refreshed token
// and still came back unauthorized.
var ErrAuthExpired = errors.New("authorization expired")
