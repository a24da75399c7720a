// Package client is the typed HTTP client the weft CLI uses to talk to the
// daemon's operator API.
package client
