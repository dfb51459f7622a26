// Package config handles configuration loading for quickfix-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${QUICKFIX_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	realtime:
//	  rate_window: "60s"
//	  max_idle: "1h"
//	  sweep_interval: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API, websocket, and health endpoints
//
// Database:
//
//	database:
//	  path: "/var/lib/quickfix/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${QUICKFIX_JWT_SECRET}"   # Required
//	  admin_token: "${QUICKFIX_ADMIN_TOKEN}" # Bearer token for admin API
//	  lookup_timeout: "5s"                   # Identity store lookup deadline
//
// Realtime connection policy:
//
//	realtime:
//	  rate_window: "60s"      # Trailing window for per-address rate limit
//	  rate_threshold: 10      # Max connections per address in the window
//	  max_idle: "1h"          # Idle connections past this are reaped
//	  sweep_interval: "60s"   # Reaper cadence
//	  exempt_paths: []        # Path prefixes exempt from the rate limit
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
