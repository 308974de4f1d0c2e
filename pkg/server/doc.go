// Package server accepts TCP connections and runs each one through a
// conn.Handler on a shared worker pool.
//
// # Usage
//
//	up := websocket.NewUpgrader()
//	up.Register("chat", chat)
//
//	srv := server.New(server.DefaultConfig().WithAddress(":8080"), up)
//	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, server.ErrServerClosed) {
//	    log.Fatal(err)
//	}
//
// # Shutdown
//
// Shutdown stops accepting, calls Shutdown on the handler when it implements
// conn.Shutdowner, waits for open connections to finish until the context or
// ShutdownTimeout expires, then closes the remaining sockets and stops the
// worker pool.
//
// # Admin endpoint
//
// When AdminAddress is set, a separate HTTP listener serves /metrics
// (Prometheus), /healthz and /sessions.
package server
