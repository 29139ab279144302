package client

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when no correlated response arrives before the
// call's deadline.
var ErrTimeout = errors.New("no response before deadline")

// RemoteError reports that the serving agent replied with its own error
// instead of a result.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// TransportError reports that the fabric could not carry the request at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
