// Package server implements the HTTP and WebSocket surface of the room chat
// relay.
//
// The implementation is organized into specialized files for configuration,
// origin checks, rate limiting, client pumps, the hub that tracks live
// connections, routing and HTTP handlers. Every WebSocket connection gets a
// server-assigned id and a session on the Server's coordinator; decoded
// frames become intents and broadcast events are written back one per
// WebSocket message.
package server
