// Package safego launches fire-and-forget goroutines that survive panics.
// Async side effects off the request path (last-used timestamp updates,
// background sweeps) run through here so a panic in one of them is logged
// instead of taking the process down.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go launches fn in a new goroutine. If fn panics, the panic and its stack
// are logged and the goroutine exits cleanly.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
