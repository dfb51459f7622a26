// ABOUTME: WebSocket handshake handler for realtime client connections
// ABOUTME: Applies the per-address rate limit and authenticates before admitting

package realtime

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
	"github.com/innovexlabs/quickfix-gateway/internal/registry"
)

// RejectRecorder counts rejected handshakes by reason. Optional.
type RejectRecorder interface {
	RecordHandshakeReject(reason string)
}

// Options tunes handshake policy.
type Options struct {
	// RateWindow and RateThreshold bound new connections per source
	// address: more than RateThreshold connections within the trailing
	// RateWindow are rejected.
	RateWindow    time.Duration
	RateThreshold int

	// ExemptPaths lists request path prefixes that bypass the rate limit.
	ExemptPaths []string

	// ServerID identifies this gateway instance in the connected ack.
	ServerID string
}

// Handler upgrades HTTP requests to websocket connections and runs the
// admission sequence: register pending, rate limit, authenticate, dedupe.
type Handler struct {
	registry *registry.Registry
	resolver *identity.Resolver
	opts     Options
	rejects  RejectRecorder
	logger   *slog.Logger

	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handshake handler. rejects may be nil.
func NewHandler(reg *registry.Registry, resolver *identity.Resolver, opts Options, rejects RejectRecorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: reg,
		resolver: resolver,
		opts:     opts,
		rejects:  rejects,
		logger:   logger.With("component", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the app origin; token auth is
			// the access control, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs the connection handshake.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := uuid.New().String()
	source := sourceAddr(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "source", source, "error", err)
		return
	}

	conn := newConn(connID, ws, h.logger)
	go conn.writePump()

	// The pending entry is registered before the rate count so the
	// attempt itself is part of the trailing window.
	h.registry.Add(connID, source, conn)

	if !h.exempt(r.URL.Path) && h.opts.RateThreshold > 0 {
		if n := h.registry.CountRecentBySource(source, h.opts.RateWindow); n > h.opts.RateThreshold {
			h.reject(conn, connID, source, identity.ReasonRateLimitExceeded, nil)
			return
		}
	}

	ident, err := h.resolver.Authenticate(r.Context(), credentialFrom(r), source)
	if err != nil {
		h.reject(conn, connID, source, identity.ReasonOf(err), err)
		return
	}

	evicted, err := h.registry.Authenticate(connID, *ident)
	if err != nil {
		// The entry vanished between Add and Authenticate; the peer is
		// already gone.
		conn.Close("connection_closed")
		return
	}
	for _, e := range evicted {
		h.logger.Info("evicted duplicate session",
			"identity_id", ident.ID,
			"evicted_connection_id", e.ID,
		)
	}

	conn.Deliver("connected", map[string]any{
		"connection_id": connID,
		"identity_id":   ident.ID,
		"role":          string(ident.Role),
		"server_id":     h.opts.ServerID,
	})

	h.logger.Info("connection authenticated",
		"connection_id", connID,
		"identity_id", ident.ID,
		"role", ident.Role,
		"source", source,
	)

	go conn.readPump(h.registry)
}

// reject sends a connection_error event, closes the socket, and removes the
// pending registry entry.
func (h *Handler) reject(conn *Conn, connID, source string, reason identity.Reason, err error) {
	if h.rejects != nil {
		h.rejects.RecordHandshakeReject(string(reason))
	}
	h.logger.Info("connection rejected",
		"connection_id", connID,
		"source", source,
		"reason", reason,
		"error", err,
	)

	conn.Deliver("connection_error", map[string]any{"reason": string(reason)})
	// Give the write pump a moment to flush the error event before the
	// close frame.
	time.Sleep(50 * time.Millisecond)
	conn.Close(string(reason))
	h.registry.Remove(connID)
}

// exempt reports whether the request path bypasses the rate limit.
func (h *Handler) exempt(path string) bool {
	for _, prefix := range h.opts.ExemptPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// credentialFrom extracts the auth token from the request. Checked in order:
// token query parameter, Authorization bearer header, token cookie. The first
// non-empty value wins; later sources are not consulted as fallbacks for an
// invalid value.
func credentialFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

// sourceAddr derives the client address: the first X-Forwarded-For hop when
// present, otherwise the peer address without the port.
func sourceAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
