// Package messenger provides the Messenger real-time gateway.
//
// This package contains no code of its own. The service is organized
// into subpackages:
//
//   - cmd/server: the gateway process (WebSocket + HTTP API)
//   - cmd/cli: messengerctl, a CLI for inspecting a running gateway
//   - cmd/migrate, cmd/seed: schema and fixture tooling
//   - internal/websocket: connection registry, acknowledged event relay,
//     call signaling and notification fan-out
//   - internal/handlers: HTTP handlers (notify API, call records, health)
//   - internal/store: persistence for users and call sessions
//   - internal/cache: Redis wrapper and last-seen bookkeeping
//   - internal/models: data models and database schemas
//   - internal/database: database connection and migrations
//   - internal/middleware: HTTP middleware (logging, metrics, rate limiting)
//   - internal/metrics: Prometheus metric registration
//   - internal/logger, internal/errors, internal/config: shared plumbing
//
// See the individual package documentation for detailed reference.
package messenger
