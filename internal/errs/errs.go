package errs

import "errors"

// Error taxonomy shared by stores, collaborators and the expiration engine.
// Store specific errors wrap one of these so callers can match on either.
var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrNotFound                = errors.New("not found")
	ErrInconsistentPolicyState = errors.New("notification template not in spread policy")
	ErrDownstreamLookup        = errors.New("downstream lookup failure")
)
