// ABOUTME: HTTP API handlers for health, connection stats, and ticket operations
// ABOUTME: Admin routes are guarded by a configured bearer token

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/innovexlabs/quickfix-gateway/internal/store"
	"github.com/innovexlabs/quickfix-gateway/internal/ticket"
)

// registerAPIRoutes registers API routes on the mux with or without the admin
// token middleware.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	statsHandler := http.HandlerFunc(g.handleConnectionStats)
	assignHandler := http.HandlerFunc(g.handleAssignTicket)
	statusHandler := http.HandlerFunc(g.handleUpdateTicketStatus)

	if g.config.Auth.AdminToken != "" {
		admin := g.requireAdminToken
		mux.Handle("/api/stats/connections", admin(statsHandler))
		mux.Handle("/api/tickets/assign", admin(assignHandler))
		mux.Handle("/api/tickets/status", admin(statusHandler))
		g.logger.Info("admin token middleware enabled")
	} else {
		mux.Handle("/api/stats/connections", statsHandler)
		mux.Handle("/api/tickets/assign", assignHandler)
		mux.Handle("/api/tickets/status", statusHandler)
		g.logger.Warn("admin API unprotected - no admin_token configured")
	}
}

// requireAdminToken rejects requests without the configured bearer token.
func (g *Gateway) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" || token != g.config.Auth.AdminToken {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token from an Authorization: Bearer header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return token
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store is reachable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.GetUser(r.Context(), "readiness-probe"); err != nil && !errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "store unavailable: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%s)", g.serverID)
}

// handleConnectionStats returns the current connection stats snapshot.
func (g *Gateway) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, g.registry.Stats())
}

type assignRequest struct {
	TicketID string `json:"ticket_id"`
	AgentID  string `json:"agent_id"`
}

// handleAssignTicket assigns a ticket to an agent and notifies them.
func (g *Gateway) handleAssignTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TicketID == "" || req.AgentID == "" {
		writeJSONError(w, http.StatusBadRequest, "ticket_id and agent_id are required")
		return
	}

	if err := g.tickets.Assign(r.Context(), req.TicketID, req.AgentID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSONError(w, http.StatusNotFound, "ticket or agent not found")
		case errors.Is(err, ticket.ErrNotAnAgent):
			writeJSONError(w, http.StatusUnprocessableEntity, "assignee is not an agent")
		default:
			g.logger.Error("ticket assignment failed", "ticket_id", req.TicketID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "assignment failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

type statusRequest struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// handleUpdateTicketStatus changes a ticket's status and notifies the submitter.
func (g *Gateway) handleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TicketID == "" || !validStatus(req.Status) {
		writeJSONError(w, http.StatusBadRequest, "ticket_id and a valid status are required")
		return
	}

	if err := g.tickets.UpdateStatus(r.Context(), req.TicketID, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "ticket not found")
			return
		}
		g.logger.Error("status update failed", "ticket_id", req.TicketID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "status update failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func validStatus(status string) bool {
	switch status {
	case store.TicketStatusOpen, store.TicketStatusAssigned, store.TicketStatusInProgress,
		store.TicketStatusResolved, store.TicketStatusClosed:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
