package slskd

import (
	"errors"
	"fmt"
)

// ErrNoSearchID means the daemon accepted the search request but returned no
// identifier, so the search can be neither polled nor stopped.
var ErrNoSearchID = errors.New("no search id returned from slskd")

// ConnectionError wraps any failure to reach the slskd daemon.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("slskd unreachable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// EnqueueError means slskd rejected or failed a transfer enqueue call.
type EnqueueError struct {
	Username string
	Err      error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue transfers for %s: %v", e.Username, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }
