// ABOUTME: Tests for group-scoped multicast delivery
// ABOUTME: Covers role groups, identity groups, and empty-match no-ops

package dispatch

import (
	"sync"
	"testing"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
	"github.com/innovexlabs/quickfix-gateway/internal/registry"
)

// captureLink records delivered events.
type captureLink struct {
	mu     sync.Mutex
	full   bool
	events []string
}

func (l *captureLink) Deliver(event string, payload any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return false
	}
	l.events = append(l.events, event)
	return true
}

func (l *captureLink) Close(reason string) {}

func (l *captureLink) received() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func connect(t *testing.T, r *registry.Registry, connID string, ident identity.Identity) *captureLink {
	t.Helper()
	link := &captureLink{}
	r.Add(connID, "10.0.0.1", link)
	if _, err := r.Authenticate(connID, ident); err != nil {
		t.Fatalf("Authenticate(%s) error = %v", connID, err)
	}
	return link
}

func TestPublishToRoleGroup(t *testing.T) {
	r := registry.New(nil)
	d := New(r, nil)

	agent1 := connect(t, r, "a1", identity.Identity{ID: "agent-1", Role: identity.RoleAgent})
	agent2 := connect(t, r, "a2", identity.Identity{ID: "agent-2", Role: identity.RoleAgent})
	user := connect(t, r, "u1", identity.Identity{ID: "user-1", Role: identity.RoleUser})

	d.Publish("role:agent", "new_ticket_assigned", map[string]string{"id": "c1"})

	if got := agent1.received(); len(got) != 1 || got[0] != "new_ticket_assigned" {
		t.Errorf("agent1 received %v, want [new_ticket_assigned]", got)
	}
	if got := agent2.received(); len(got) != 1 {
		t.Errorf("agent2 received %v, want one event", got)
	}
	if got := user.received(); len(got) != 0 {
		t.Errorf("user received %v, want none", got)
	}
}

func TestPublishToIdentityGroup(t *testing.T) {
	r := registry.New(nil)
	d := New(r, nil)

	target := connect(t, r, "a1", identity.Identity{ID: "agent-7", Role: identity.RoleAgent})
	other := connect(t, r, "a2", identity.Identity{ID: "agent-8", Role: identity.RoleAgent})

	d.Publish(IdentityGroup("agent-7"), "new_ticket_assigned", map[string]string{"ticket_id": "t1"})

	if got := target.received(); len(got) != 1 {
		t.Errorf("target received %v, want one event", got)
	}
	if got := other.received(); len(got) != 0 {
		t.Errorf("other received %v, want none", got)
	}
}

func TestPublishSkipsPendingEntries(t *testing.T) {
	r := registry.New(nil)
	d := New(r, nil)

	pending := &captureLink{}
	r.Add("p1", "10.0.0.1", pending)

	d.Publish("role:user", "ticket_status_changed", nil)

	if got := pending.received(); len(got) != 0 {
		t.Errorf("pending entry received %v, want none", got)
	}
}

func TestPublishEmptyMatchIsNoOp(t *testing.T) {
	r := registry.New(nil)
	d := New(r, nil)

	// No connections at all: must not panic or error.
	d.Publish("role:analyst", "report_ready", map[string]int{"count": 3})
	d.Publish(IdentityGroup("nobody"), "report_ready", nil)
}

func TestPublishMalformedGroupContained(t *testing.T) {
	r := registry.New(nil)
	d := New(r, nil)
	link := connect(t, r, "a1", identity.Identity{ID: "agent-1", Role: identity.RoleAgent})

	d.Publish("bogus", "event", nil)
	d.Publish("role:wizard", "event", nil)
	d.Publish("identity:", "event", nil)

	if got := link.received(); len(got) != 0 {
		t.Errorf("connection received %v from malformed groups, want none", got)
	}
}

func TestPublishSlowConnectionDropped(t *testing.T) {
	r := registry.New(nil)
	d := New(r, nil)

	slow := &captureLink{full: true}
	r.Add("s1", "10.0.0.1", slow)
	if _, err := r.Authenticate("s1", identity.Identity{ID: "u1", Role: identity.RoleUser}); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	fast := connect(t, r, "f1", identity.Identity{ID: "u2", Role: identity.RoleUser})

	d.Publish("role:user", "ticket_status_changed", nil)

	if got := fast.received(); len(got) != 1 {
		t.Errorf("fast connection received %v, want one event", got)
	}
	if got := slow.received(); len(got) != 0 {
		t.Errorf("slow connection received %v, want none", got)
	}
}

func TestGroupHelpers(t *testing.T) {
	if got := RoleGroup(identity.RoleAgent); got != "role:agent" {
		t.Errorf("RoleGroup() = %q, want role:agent", got)
	}
	if got := IdentityGroup("u1"); got != "identity:u1" {
		t.Errorf("IdentityGroup() = %q, want identity:u1", got)
	}
}
