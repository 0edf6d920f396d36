// Package memzero provides best-effort wiping of secret byte buffers.
//
// On a garbage-collected runtime this cannot guarantee that no copies of the
// secret persist in memory; it bounds the exposure window, nothing more.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// ZeroAll wipes every buffer in bufs.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}
