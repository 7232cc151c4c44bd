// Package events implements the typed publish/subscribe hub carrying the
// widget's lifecycle events (chat.initiated, message.received, ...).
//
// Delivery is synchronous on the emitting goroutine with explicit
// unsubscribe, so observers always see State Store mutations that
// happened-before the event they are handling.
package events
