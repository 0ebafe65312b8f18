// Package app composes the trading journal services into a running
// application. It is a wiring layer, not a business logic layer.
//
// The layout follows a simple repository pattern:
//
//	internal/app/
//	├── application.go      # Application struct, service wiring, lifecycle
//	├── domain/             # Domain models (pure data structures)
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── services/           # Business logic (accounts, trades, billing, ...)
//	├── httpapi/            # HTTP handlers and routing
//	├── realtime/           # Websocket event hub
//	├── system/             # Background service lifecycle management
//	└── metrics/            # Prometheus collectors
//
// Adding a new domain means: model in domain/, interface in
// storage/interfaces.go, implementations in storage/memory and
// storage/postgres, a service under services/, wiring in application.go and
// handlers in httpapi/.
package app
