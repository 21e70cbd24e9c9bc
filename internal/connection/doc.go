// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single active bridge client handle
//   - Tracks a tri-state connection status (disconnected, connecting, connected)
//   - Maps bridge lifecycle events to state transitions through a fixed table
//   - Reconnects after a fixed delay, with one pending attempt at a time
//   - Lets tool handlers wait for a live handle before acting
package connection
