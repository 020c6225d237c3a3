package completion

import "errors"

// ErrClosed is returned by Request after the service has been shut down.
var ErrClosed = errors.New("completion: service closed")
