// Package daemon hosts the weft background process: the capture and catalog
// stores, the domain services, single-instance locking, and the HTTP API for
// SDK clients and dashboard operators.
package daemon
