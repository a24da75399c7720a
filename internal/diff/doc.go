// Package diff classifies a session's captured items against the catalog
// into reconciliation findings. It is pure: no store access, no clock, no
// side effects.
package diff
