// Package main is the entry point for the DeskRelay widget backend.
//
// The daemon sits between the browser-embedded widget bundle and the two
// upstream services: the REST backend (session creation, conversation
// policy) and the messaging transport (auth, rooms, message stream).
//
// Architecture:
//
//	Widget bundle (browser) → widget backend → REST backend (sessions)
//	                                        → messaging transport (chat)
//
// The server provides:
//   - REST API for chat initiation, state, and messaging
//   - WebSocket push of conversation lifecycle events
//   - Durable session tuples for restoration across restarts
//   - Rate limiting and CORS for cross-origin embedding
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML file overlay (-config)
//
// Usage:
//
//	# Production mode
//	APP_ID=acme ./server
//
//	# Development mode (colored logs, debug routing)
//	APP_ID=acme ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
