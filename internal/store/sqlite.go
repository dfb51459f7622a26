// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/ticket/notification persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email);

		CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			priority TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL,
			submitter_id TEXT NOT NULL,
			assignee_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (submitter_id) REFERENCES users(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_number
			ON tickets(number);

		CREATE INDEX IF NOT EXISTS idx_tickets_assignee
			ON tickets(assignee_id);

		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			recipient_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			ticket_id TEXT,
			read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (recipient_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_recipient
			ON notifications(recipient_id, read);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.Active, user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, active, created_at
		 FROM users WHERE id = ?`, id))
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, active, created_at
		 FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = identity.Role(role)
	return &u, nil
}

// LookupIdentity resolves a user ID to its Identity for handshake
// authentication. Unknown and deactivated users are indistinguishable to the
// caller: both return identity.ErrIdentityNotFound.
func (s *SQLiteStore) LookupIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	var ident identity.Identity
	var role string
	var active bool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, active FROM users WHERE id = ?`, id,
	).Scan(&ident.ID, &ident.DisplayName, &role, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up identity: %w", err)
	}
	if !active {
		return nil, identity.ErrIdentityNotFound
	}
	ident.Role = identity.Role(role)
	return &ident, nil
}

// CreateTicket inserts a new ticket record.
func (s *SQLiteStore) CreateTicket(ctx context.Context, ticket *Ticket) error {
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = now
	}
	if ticket.Status == "" {
		ticket.Status = TicketStatusOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, number, title, description, priority, category, status, submitter_id, assignee_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.Number, ticket.Title, ticket.Description, ticket.Priority,
		ticket.Category, ticket.Status, ticket.SubmitterID, nullable(ticket.AssigneeID),
		ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting ticket: %w", err)
	}
	return nil
}

// GetTicket retrieves a ticket by ID.
func (s *SQLiteStore) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	var t Ticket
	var assignee sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, number, title, description, priority, category, status, submitter_id, assignee_id, created_at, updated_at
		 FROM tickets WHERE id = ?`, id,
	).Scan(&t.ID, &t.Number, &t.Title, &t.Description, &t.Priority, &t.Category,
		&t.Status, &t.SubmitterID, &assignee, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ticket: %w", err)
	}
	t.AssigneeID = assignee.String
	return &t, nil
}

// AssignTicket sets the assignee and moves the ticket to assigned status.
func (s *SQLiteStore) AssignTicket(ctx context.Context, ticketID, assigneeID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET assignee_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		assigneeID, TicketStatusAssigned, time.Now().UTC(), ticketID,
	)
	if err != nil {
		return fmt.Errorf("assigning ticket: %w", err)
	}
	return requireRowAffected(res)
}

// UpdateTicketStatus changes a ticket's status.
func (s *SQLiteStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), ticketID,
	)
	if err != nil {
		return fmt.Errorf("updating ticket status: %w", err)
	}
	return requireRowAffected(res)
}

// CreateNotification inserts a durable notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, type, title, message, ticket_id, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, nullable(n.TicketID), n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListNotifications returns a recipient's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error) {
	query := `SELECT id, recipient_id, type, title, message, ticket_id, read, created_at
		 FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var ticketID sql.NullString
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &ticketID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.TicketID = ticketID.String
		out = append(out, &n)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullable converts an empty string to a NULL-able value.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requireRowAffected maps a zero-row update to ErrNotFound.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
