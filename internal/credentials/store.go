// Package credentials owns the session token lifecycle: load on start,
// persist on change, clear on logout or rejection.
package credentials

import "errors"

// ErrNotFound is returned by Store.Load when no credential is persisted.
// Absence is a valid state, not a failure.
var ErrNotFound = errors.New("credentials: no stored token")

// Store persists one opaque bearer token across process restarts.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}
