// Package routes wires the controllers into a gin engine.
//
//   - api.go: /v1 API, health checks and /metrics
//   - web.go: /, /docs and /status
package routes
