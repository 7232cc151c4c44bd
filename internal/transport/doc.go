// Package transport implements the vendor messaging session: REST
// endpoints for auth, rooms, and messages, plus a websocket stream
// carrying inbound message, typing, and receipt events.
package transport
