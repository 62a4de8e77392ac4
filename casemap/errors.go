package casemap

import "errors"

var (
	// ErrInvalidPort is returned by PortParser for a malformed or
	// out-of-range port token.
	ErrInvalidPort = errors.New("casemap: invalid port")
	// ErrPortOverlap is returned by PortParser when rejectOverlap is set
	// and a port appears more than once across the spec.
	ErrPortOverlap = errors.New("casemap: overlapping port range")
)
