// ABOUTME: In-memory registry of live realtime connections
// ABOUTME: Sole shared mutable structure; all mutation is atomic per entry

package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
)

// State is the lifecycle state of a registry entry.
type State string

// Entry states. An entry never transitions out of StateClosed.
const (
	StatePending       State = "pending"
	StateAuthenticated State = "authenticated"
	StateClosed        State = "closed"
)

// ErrEntryNotFound indicates the connection ID has no live entry.
var ErrEntryNotFound = errors.New("connection entry not found")

// Link is the transport half of a registry entry. Deliver must not block;
// it reports whether the event was accepted. Close force-disconnects the
// underlying connection with a client-visible reason.
type Link interface {
	Deliver(event string, payload any) bool
	Close(reason string)
}

// Entry is a point-in-time view of one live connection. Identity fields are
// populated only once the entry is authenticated; state, identity ID, and
// role transition together, never partially.
type Entry struct {
	ID             string
	SourceAddr     string
	State          State
	IdentityID     string
	Role           identity.Role
	DisplayName    string
	ConnectedAt    time.Time
	LastActivityAt time.Time
	Link           Link
}

// Stats is the aggregate snapshot emitted for observability.
type Stats struct {
	Total         int            `json:"total_connections"`
	Authenticated int            `json:"authenticated_connections"`
	ByRole        map[string]int `json:"connections_by_role"`
}

// Registry tracks one entry per live connection, keyed by connection ID.
// Safe for concurrent use from connection lifecycles, the reaper, and
// dispatch callers.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty registry. Pass nil logger for the default.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger.With("component", "registry"),
		now:     time.Now,
	}
}

// Add records a new pending entry for a just-connected client.
func (r *Registry) Add(id, sourceAddr string, link Link) {
	now := r.now()

	r.mu.Lock()
	r.entries[id] = &Entry{
		ID:             id,
		SourceAddr:     sourceAddr,
		State:          StatePending,
		ConnectedAt:    now,
		LastActivityAt: now,
		Link:           link,
	}
	total := len(r.entries)
	r.mu.Unlock()

	r.logger.Debug("connection pending",
		"connection_id", id,
		"source_addr", sourceAddr,
		"total_connections", total,
	)
}

// Authenticate transitions a pending entry to authenticated, setting the
// identity fields atomically with the state, and evicts any other
// authenticated entry for the same identity in the same critical section.
// Most-recent-authentication wins, so at most one authenticated connection
// per identity exists at any instant, even under concurrent handshakes.
// Returns the evicted entries; their close hooks run after the registry lock
// is released. Returns ErrEntryNotFound if the entry is gone or closed.
func (r *Registry) Authenticate(id string, ident identity.Identity) ([]Entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.State == StateClosed {
		r.mu.Unlock()
		return nil, ErrEntryNotFound
	}

	e.State = StateAuthenticated
	e.IdentityID = ident.ID
	e.Role = ident.Role
	e.DisplayName = ident.DisplayName
	e.LastActivityAt = r.now()

	var evicted []Entry
	for otherID, other := range r.entries {
		if otherID == id || other.State != StateAuthenticated || other.IdentityID != ident.ID {
			continue
		}
		other.State = StateClosed
		evicted = append(evicted, *other)
		delete(r.entries, otherID)
	}
	r.mu.Unlock()

	for _, old := range evicted {
		r.logger.Info("evicting duplicate session",
			"connection_id", old.ID,
			"identity_id", ident.ID,
			"replaced_by", id,
		)
		if old.Link != nil {
			old.Link.Close("duplicate_session")
		}
	}
	return evicted, nil
}

// Remove deletes an entry. Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		e.State = StateClosed
		delete(r.entries, id)
	}
	total := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("connection removed",
			"connection_id", id,
			"total_connections", total,
		)
	}
}

// Touch updates an entry's last-activity timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.LastActivityAt = r.now()
	}
}

// Get returns a copy of the entry with the given ID.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns a consistent copy of all entries. Iteration by the
// reaper, dispatcher, and rate limiter works on snapshots so concurrent
// connect/disconnect activity never invalidates a sweep.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// CountRecentBySource counts entries (any state) whose source address matches
// and whose connect time falls inside the trailing window. This is the rate
// limiter's derived counter: approximate, process-local, and decaying as old
// entries are removed rather than via a separate decrement.
func (r *Registry) CountRecentBySource(sourceAddr string, window time.Duration) int {
	cutoff := r.now().Add(-window)

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.entries {
		if e.SourceAddr == sourceAddr && e.ConnectedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats computes the aggregate observability snapshot.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Total:  len(r.entries),
		ByRole: make(map[string]int),
	}
	for _, e := range r.entries {
		if e.State == StateAuthenticated {
			stats.Authenticated++
			stats.ByRole[string(e.Role)]++
		}
	}
	return stats
}

// reapIdle force-closes entries idle beyond maxIdle and returns them.
// Close hooks run after the lock is released. Idempotent: a sweep over
// already-removed entries removes nothing and never errors.
func (r *Registry) reapIdle(maxIdle time.Duration) []Entry {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var reaped []Entry
	for id, e := range r.entries {
		if e.LastActivityAt.After(cutoff) {
			continue
		}
		e.State = StateClosed
		reaped = append(reaped, *e)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, e := range reaped {
		if e.Link != nil {
			e.Link.Close("idle_timeout")
		}
	}
	return reaped
}
