// Package wsstream serves decision records to WebSocket clients for
// live dashboards.
//
// # Overview
//
// The server runs a small HTTP listener with a single upgrade
// endpoint. Every record the decode loop emits is wrapped in a typed
// envelope and broadcast to all connected clients; delivery is
// at-most-once, a slow or dead client is dropped rather than allowed
// to stall the loop.
//
// # Protocol
//
// Messages are JSON envelopes:
//
//	{"type": "result", "timestamp": 1714000000123, "payload": {...}}
//
// The type field is "result" for attention records, "focus" for focus
// records and "status" for periodic reports. Clients are write-only
// from the server's perspective; anything they send is discarded.
//
// Connection health is maintained with WebSocket pings every 30
// seconds. A client that misses the read deadline is closed and
// removed on its next write.
//
// # Lifecycle
//
//	srv := wsstream.New(cfg.Outputs.WebSocket, logger)
//	srv.Initialize()
//	srv.Start(ctx)
//	...
//	srv.Stop(5 * time.Second)
//
// The server also satisfies the decode loop's sink contract; Close is
// a Stop with a short timeout.
package wsstream
