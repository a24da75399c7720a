// Package session owns the capture session lifecycle: opening and resuming
// sessions, binding them to SDK identities, lazy staleness expiry, and the
// guarded state walk around an apply.
package session
