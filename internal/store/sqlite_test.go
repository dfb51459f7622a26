// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Uses in-memory databases; covers users, identity lookup, tickets, notifications

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, role identity.Role, active bool) *User {
	t.Helper()
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u := &User{
		ID:           uuid.New().String(),
		Name:         "Jordan Reyes",
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, identity.RoleAgent, true)

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Email != u.Email {
		t.Errorf("GetUser() email = %q, want %q", got.Email, u.Email)
	}
	if got.Role != identity.RoleAgent {
		t.Errorf("GetUser() role = %q, want agent", got.Role)
	}
	if !got.CheckPassword("hunter2hunter2") {
		t.Error("CheckPassword() = false for correct password")
	}
	if got.CheckPassword("wrong") {
		t.Error("CheckPassword() = true for wrong password")
	}

	byEmail, err := s.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail() id = %q, want %q", byEmail.ID, u.ID)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, identity.RoleUser, true)

	dup := &User{
		ID:           uuid.New().String(),
		Name:         "Other",
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         identity.RoleUser,
		Active:       true,
	}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("CreateUser() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestLookupIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, identity.RoleAgent, true)

	ident, err := s.LookupIdentity(ctx, u.ID)
	if err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	if ident.ID != u.ID || ident.Role != identity.RoleAgent || ident.DisplayName != u.Name {
		t.Errorf("LookupIdentity() = %+v, want id=%s role=agent name=%s", ident, u.ID, u.Name)
	}
}

func TestLookupIdentityUnknownAndInactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LookupIdentity(ctx, "missing"); !errors.Is(err, identity.ErrIdentityNotFound) {
		t.Errorf("LookupIdentity(missing) error = %v, want ErrIdentityNotFound", err)
	}

	inactive := seedUser(t, s, identity.RoleUser, false)
	if _, err := s.LookupIdentity(ctx, inactive.ID); !errors.Is(err, identity.ErrIdentityNotFound) {
		t.Errorf("LookupIdentity(inactive) error = %v, want ErrIdentityNotFound", err)
	}
}

func TestTicketLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submitter := seedUser(t, s, identity.RoleUser, true)
	agent := seedUser(t, s, identity.RoleAgent, true)

	ticket := &Ticket{
		ID:          uuid.New().String(),
		Number:      "QF-2026-000123",
		Title:       "Broken streetlight",
		Description: "The light at 5th and Main has been out for a week",
		Priority:    PriorityHigh,
		Category:    "infrastructure",
		SubmitterID: submitter.ID,
	}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}

	got, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket() error = %v", err)
	}
	if got.Status != TicketStatusOpen {
		t.Errorf("new ticket status = %q, want open", got.Status)
	}
	if got.AssigneeID != "" {
		t.Errorf("new ticket assignee = %q, want empty", got.AssigneeID)
	}

	if err := s.AssignTicket(ctx, ticket.ID, agent.ID); err != nil {
		t.Fatalf("AssignTicket() error = %v", err)
	}
	got, err = s.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket() after assign error = %v", err)
	}
	if got.AssigneeID != agent.ID {
		t.Errorf("assignee = %q, want %q", got.AssigneeID, agent.ID)
	}
	if got.Status != TicketStatusAssigned {
		t.Errorf("status after assign = %q, want assigned", got.Status)
	}

	if err := s.UpdateTicketStatus(ctx, ticket.ID, TicketStatusResolved); err != nil {
		t.Fatalf("UpdateTicketStatus() error = %v", err)
	}
	got, _ = s.GetTicket(ctx, ticket.ID)
	if got.Status != TicketStatusResolved {
		t.Errorf("status = %q, want resolved", got.Status)
	}
}

func TestAssignTicketNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.AssignTicket(context.Background(), "missing", "agent-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AssignTicket() error = %v, want ErrNotFound", err)
	}
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := seedUser(t, s, identity.RoleAgent, true)

	first := &Notification{
		ID:          uuid.New().String(),
		RecipientID: agent.ID,
		Type:        "new_ticket_assigned",
		Title:       "New Complaint Assigned",
		Message:     "New high priority complaint assigned to you",
		TicketID:    "t1",
		CreatedAt:   time.Now().UTC().Add(-time.Minute),
	}
	second := &Notification{
		ID:          uuid.New().String(),
		RecipientID: agent.ID,
		Type:        "ticket_status_changed",
		Title:       "Status Updated",
		Message:     "Complaint QF-2026-000123 is now resolved",
		Read:        true,
	}
	if err := s.CreateNotification(ctx, first); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}
	if err := s.CreateNotification(ctx, second); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}

	all, err := s.ListNotifications(ctx, agent.ID, false)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListNotifications() returned %d, want 2", len(all))
	}
	if all[0].ID != second.ID {
		t.Errorf("newest-first ordering broken: first = %s, want %s", all[0].ID, second.ID)
	}

	unread, err := s.ListNotifications(ctx, agent.ID, true)
	if err != nil {
		t.Fatalf("ListNotifications(unread) error = %v", err)
	}
	if len(unread) != 1 || unread[0].ID != first.ID {
		t.Errorf("unread filter returned %d rows, want the single unread one", len(unread))
	}
}
