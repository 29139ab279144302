package fabric

import "errors"

// Sentinel errors for fabric delivery.
var (
	ErrEndpointExists     = errors.New("endpoint already registered")
	ErrEndpointNotFound   = errors.New("endpoint not found")
	ErrUnknownDestination = errors.New("unknown destination address")
)
