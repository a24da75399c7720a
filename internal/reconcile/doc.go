// Package reconcile stages operator draft decisions for a capture session
// and applies them to the catalog in a single transaction.
package reconcile
