// Package types defines the shared domain model for the chat widget:
// session tuples, rooms, messages, state snapshots, and the lifecycle
// event vocabulary.
//
// These types cross package boundaries (orchestrator, stores, transport,
// API surface) and carry their wire representation in JSON tags.
package types
