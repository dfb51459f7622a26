// ABOUTME: Ticket assignment and status-change workflow
// ABOUTME: Persists a notification row first, then publishes a realtime event

package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/innovexlabs/quickfix-gateway/internal/dispatch"
	"github.com/innovexlabs/quickfix-gateway/internal/identity"
	"github.com/innovexlabs/quickfix-gateway/internal/store"
)

// ErrNotAnAgent is returned when assigning a ticket to a non-agent user.
var ErrNotAnAgent = errors.New("assignee is not an agent")

// Notifier publishes an event to a multicast group of live connections.
type Notifier interface {
	Publish(group, event string, payload any)
}

// Service runs the assignment and status-change workflows. Notifications are
// written to the store before the realtime publish, so a disconnected
// recipient still sees them on next load.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates the ticket service. Pass nil logger for the default.
func NewService(st store.Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.With("component", "ticket"),
	}
}

// Assign assigns the ticket to the given agent, records a durable
// notification, and publishes new_ticket_assigned to the agent's identity
// group. A publish with no live connections is a no-op; the stored
// notification is the source of truth.
func (s *Service) Assign(ctx context.Context, ticketID, agentID string) error {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("loading ticket: %w", err)
	}

	agent, err := s.store.GetUser(ctx, agentID)
	if err != nil {
		return fmt.Errorf("loading assignee: %w", err)
	}
	if agent.Role != identity.RoleAgent {
		return ErrNotAnAgent
	}

	if err := s.store.AssignTicket(ctx, ticketID, agentID); err != nil {
		return fmt.Errorf("assigning ticket: %w", err)
	}

	message := fmt.Sprintf("New %s priority complaint assigned to you", ticket.Priority)
	notification := &store.Notification{
		ID:          uuid.New().String(),
		RecipientID: agentID,
		Type:        "new_ticket_assigned",
		Title:       "New Complaint Assigned",
		Message:     message,
		TicketID:    ticket.ID,
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}

	s.notifier.Publish(dispatch.IdentityGroup(agentID), "new_ticket_assigned", map[string]any{
		"ticket_id": ticket.ID,
		"number":    ticket.Number,
		"title":     ticket.Title,
		"priority":  ticket.Priority,
		"message":   message,
	})

	s.logger.Info("ticket assigned",
		"ticket_id", ticket.ID,
		"number", ticket.Number,
		"agent_id", agentID,
	)
	return nil
}

// UpdateStatus changes a ticket's status and notifies the submitter.
func (s *Service) UpdateStatus(ctx context.Context, ticketID, status string) error {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("loading ticket: %w", err)
	}

	if err := s.store.UpdateTicketStatus(ctx, ticketID, status); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	message := fmt.Sprintf("Complaint %s is now %s", ticket.Number, status)
	notification := &store.Notification{
		ID:          uuid.New().String(),
		RecipientID: ticket.SubmitterID,
		Type:        "ticket_status_changed",
		Title:       "Complaint Status Updated",
		Message:     message,
		TicketID:    ticket.ID,
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}

	s.notifier.Publish(dispatch.IdentityGroup(ticket.SubmitterID), "ticket_status_changed", map[string]any{
		"ticket_id": ticket.ID,
		"number":    ticket.Number,
		"status":    status,
		"message":   message,
	})

	s.logger.Info("ticket status updated",
		"ticket_id", ticket.ID,
		"status", status,
	)
	return nil
}
