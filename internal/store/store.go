// ABOUTME: Store interface and data types for quickfix-gateway persistence
// ABOUTME: Defines User, Ticket, Notification and the Store interface

package store

import (
	"context"
	"errors"
	"time"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with a taken email.
var ErrDuplicateEmail = errors.New("email already registered")

// Ticket status constants.
const (
	TicketStatusOpen       = "open"
	TicketStatusAssigned   = "assigned"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

// Ticket priority constants.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// User is an account record. PasswordHash is a bcrypt hash and is never
// exposed through the identity lookup.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         identity.Role
	Active       bool
	CreatedAt    time.Time
}

// Ticket is a complaint record.
type Ticket struct {
	ID          string
	Number      string // human-facing complaint number, e.g. QF-2026-000123
	Title       string
	Description string
	Priority    string
	Category    string
	Status      string
	SubmitterID string
	AssigneeID  string // empty until assigned
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Notification is the durable record behind a realtime event. The realtime
// channel is best-effort enrichment; this row is the source of truth a
// client reads on next load regardless of whether it was connected.
type Notification struct {
	ID          string
	RecipientID string
	Type        string
	Title       string
	Message     string
	TicketID    string
	Read        bool
	CreatedAt   time.Time
}

// Store defines persistence operations for the gateway.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// LookupIdentity resolves a user ID to its Identity. Inactive or
	// unknown users return identity.ErrIdentityNotFound.
	LookupIdentity(ctx context.Context, id string) (*identity.Identity, error)

	// Tickets
	CreateTicket(ctx context.Context, ticket *Ticket) error
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	AssignTicket(ctx context.Context, ticketID, assigneeID string) error
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error

	// Notifications
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error)

	Close() error
}
