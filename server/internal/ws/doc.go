// Package ws implements the WebSocket hub for sentinelwatch-server.
//
// Hub manages a set of connected dashboard clients and broadcasts the
// most recent activities to all of them on a configurable interval
// (default 5s in production).
//
// New(store, interval, feedSize) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker — blocks until ctx is
// cancelled, then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the
// current feed immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "activities",
//	  "data":  { "activities": [...], "generated_at": "..." }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the
// reverse proxy level. WebSocket endpoint is mounted at /ws/stream by
// the server.
package ws
