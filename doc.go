// Package anode implements a Model Context Protocol (MCP) client for driving
// automation actions on a remote device. It manages the connection lifecycle
// over a persistent WebSocket or an SSE stream paired with HTTP POSTs,
// correlates asynchronous requests with responses, routes unsolicited server
// notifications to registered observers, and recovers from transport loss
// through automatic reconnection.
//
// A Client is created with NewClient and must be connected with Connect before
// any remote calls can be made. Remote tools are invoked through CallTool or
// the generated convenience wrappers; lifecycle events are observed through
// the On* registration methods.
package anode
