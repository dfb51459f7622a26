// ABOUTME: Multicast dispatcher delivering events to groups of live connections
// ABOUTME: Fire-and-forget; membership is derived from registry snapshots

package dispatch

import (
	"log/slog"
	"strings"

	"github.com/innovexlabs/quickfix-gateway/internal/identity"
	"github.com/innovexlabs/quickfix-gateway/internal/registry"
)

// Group prefixes. A group is either role:<role> or identity:<identityId>.
const (
	groupRolePrefix     = "role:"
	groupIdentityPrefix = "identity:"
)

// RoleGroup returns the multicast group for every connection with the role.
func RoleGroup(role identity.Role) string {
	return groupRolePrefix + string(role)
}

// IdentityGroup returns the multicast group for one identity's connection.
func IdentityGroup(identityID string) string {
	return groupIdentityPrefix + identityID
}

// Dispatcher publishes events to authenticated registry entries whose derived
// group membership matches the target. Delivery is best-effort enrichment
// over durably persisted records; there is no delivery guarantee and no
// replay for missed notifications.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a dispatcher over the registry. Pass nil logger for the default.
func New(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: reg,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Publish delivers event/payload to every authenticated connection belonging
// to group. An empty match set is a silent no-op. Safe to call concurrently
// with connect/disconnect activity; a malformed group is logged and contained
// to this call.
func (d *Dispatcher) Publish(group, event string, payload any) {
	match, ok := membership(group)
	if !ok {
		d.logger.Error("dropping publish to malformed group",
			"group", group,
			"event", event,
		)
		return
	}

	delivered, dropped := 0, 0
	for _, e := range d.registry.Snapshot() {
		if e.State != registry.StateAuthenticated || !match(e) || e.Link == nil {
			continue
		}
		if e.Link.Deliver(event, payload) {
			delivered++
		} else {
			dropped++
			d.logger.Warn("dropped event for slow connection",
				"connection_id", e.ID,
				"event", event,
			)
		}
	}

	if delivered > 0 || dropped > 0 {
		d.logger.Debug("event published",
			"group", group,
			"event", event,
			"delivered", delivered,
			"dropped", dropped,
		)
	}
}

// membership parses a group into a predicate over registry entries.
func membership(group string) (func(registry.Entry) bool, bool) {
	switch {
	case strings.HasPrefix(group, groupRolePrefix):
		role := identity.Role(strings.TrimPrefix(group, groupRolePrefix))
		if !role.Valid() {
			return nil, false
		}
		return func(e registry.Entry) bool { return e.Role == role }, true

	case strings.HasPrefix(group, groupIdentityPrefix):
		id := strings.TrimPrefix(group, groupIdentityPrefix)
		if id == "" {
			return nil, false
		}
		return func(e registry.Entry) bool { return e.IdentityID == id }, true

	default:
		return nil, false
	}
}
