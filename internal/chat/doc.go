// Package chat orchestrates the conversation lifecycle: restoring a stored
// session when one exists, running the initiation handshake when none does,
// and applying message traffic to the conversation state. State mutations
// always land before their lifecycle events are emitted.
package chat
