// Package ws provides the websocket telemetry tap of the software bus.
//
// Each connection gets a session id and a bus pipe of the same name. The
// client subscribes that pipe to message ids and receives every matching
// message as a decoded header plus hex payload.
//
// Message Types (Client → Server):
//   - subscribe: route msg_ids to the session pipe
//   - unsubscribe: remove routes
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - system: session opened
//   - subscribed / unsubscribed: ids whose routes changed
//   - message: one bus message
//   - pong, error
//
// Example Usage:
//
//	tap := ws.NewTap(bus, metrics, log)
//	router.GET("/tap", tap.HandleConnection)
package ws
