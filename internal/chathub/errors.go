package chathub

import "errors"

// Contract-violation errors. These indicate a bug in the transport layer
// or a coordinator invariant breach, not a recoverable business error:
// the coordinator logs them at error level and aborts the operation
// without partial state change. They are never surfaced to the remote
// participant.
var (
	ErrUnknownIdentity   = errors.New("unknown identity")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrIllegalTransition = errors.New("illegal lifecycle transition")
)
