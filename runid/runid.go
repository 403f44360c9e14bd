// Package runid generates the opaque identifiers that scope one invocation
// of a Governor.
package runid

import "github.com/google/uuid"

// RunID uniquely identifies one invocation of a Governor. It is opaque to
// callers and never reused within a process.
type RunID string

// New returns a fresh RunID backed by a process-wide cryptographically
// random UUID source.
func New() RunID {
	return RunID(uuid.NewString())
}

// String returns the identifier's textual form.
func (r RunID) String() string {
	return string(r)
}

// Empty reports whether the identifier was never assigned.
func (r RunID) Empty() bool {
	return r == ""
}
