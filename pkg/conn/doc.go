// Package conn owns accepted sockets and runs the first request of every
// connection through a Handler.
//
// # Concurrency
//
// A Pool is a fixed set of worker goroutines draining one task queue. Every
// Conn has a Strand that posts onto the pool and never runs two of its tasks
// at the same time, so completions for a single connection are serialized
// while different connections proceed in parallel. Blocking socket reads run
// in their own goroutine and post their completion to the strand.
//
// # Lifetime
//
// A Conn is reference counted. New returns it with one reference, which Start
// consumes. Every outstanding Read holds a reference, and holders such as a
// WebSocket session call Retain and Release. The socket is shut down in both
// directions when the last reference is released.
//
// # Dispatch
//
// Start reads until the request head is complete, passes it to the Handler,
// writes the reply and then invokes the ready callback registered through
// OnReady. No further request is read from the connection; a handler that
// wants to keep it, for example after a protocol upgrade, retains it from the
// ready callback and issues its own reads.
package conn
