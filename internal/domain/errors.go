package domain

import (
	"errors"
	"fmt"
)

// Error kinds for all public engine operations. Failures wrap exactly one of
// these sentinels so callers can select on the kind with errors.Is and decide
// whether to retry, surface, or tear down.
var (
	// ErrValidation marks a malformed or rejected input: bad protocol
	// version, unsupported cipher suite, expired lifetime, or a bad
	// signature on a KeyPackage.
	ErrValidation = errors.New("validation failed")

	// ErrState marks an operation against a session in the wrong state:
	// unknown group, or an incoming Commit that violates epoch sequencing.
	ErrState = errors.New("invalid session state")

	// ErrSecurity marks a cryptographic authentication failure: MAC or
	// confirmation-tag mismatch, a sealed box that will not open, a forged
	// Welcome, or the local member vanishing from the tree after a Commit.
	// Security errors are not retryable.
	ErrSecurity = errors.New("security violation")

	// ErrCapacity marks a group that would exceed the maximum size.
	ErrCapacity = errors.New("capacity exceeded")
)

// ErrRemoved reports that the local member was removed from the group by a
// Commit. The session is torn down before this is returned; it wraps
// ErrSecurity and is terminal.
var ErrRemoved = fmt.Errorf("removed from group: %w", ErrSecurity)

// RemovedFromGroup reports whether err is the terminal removed-from-group
// condition.
func RemovedFromGroup(err error) bool { return errors.Is(err, ErrRemoved) }
