// Package interfaces defines the transport boundary shared by the hub,
// relay and registry so they never depend on a concrete WebSocket type.
package interfaces

// Conn is a live client transport session. The ID is assigned when the
// transport opens and is never reused.
type Conn interface {
	// ID returns the opaque connection identifier.
	ID() string

	// WriteJSON sends a JSON-serializable value to the client. Delivery is
	// best-effort; an error means the payload was not queued.
	WriteJSON(v interface{}) error

	// Close tears down the transport. Safe to call more than once.
	Close() error
}
