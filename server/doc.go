// Package server provides the HTTP server of the lookup backend: a Gin
// engine served over HTTP/1.1 and h2c, wrapped in a standard net/http
// middleware chain and exposed to the component registry.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: cross-origin headers and preflight handling
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging; streaming writers keep Flush
//   - Auth: bearer token validation (Gin)
//   - RateLimit: per-client token buckets (Gin)
//
// # Endpoints
//
// RegisterDefaultEndpoints (server/endpoint) adds /health, /ready, /alive,
// /info, /version and /metrics.
package server
