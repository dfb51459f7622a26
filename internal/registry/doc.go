// Package registry tracks live realtime connections for the gateway.
//
// # Registry
//
// The Registry is the single shared mutable structure of the realtime
// subsystem: one entry per live connection, keyed by an opaque connection ID
// assigned at connect time. All mutation (insert, authenticate, remove) is
// atomic per key behind a mutex, and readers never observe a partially
// initialized entry — state, identity ID, and role transition together.
//
// # Entry Lifecycle
//
//	pending -> authenticated -> closed
//	pending ----------------> closed   (auth failure / rate limit)
//
// No transition leaves closed. Authenticated entries are removed by explicit
// disconnect, duplicate-session eviction, or the idle reaper.
//
// # Derived Policies
//
// Two time-windowed policies are computed from the registry rather than kept
// in separate structures that could go stale:
//
//   - Rate limiting: CountRecentBySource scans entries whose connect time
//     falls in the trailing window. Process-local and approximate.
//   - Group membership: a connection belongs to role:<role> always and to
//     identity:<id> once authenticated; the dispatcher derives both from
//     snapshots on demand.
//
// # Duplicate Sessions
//
// Authenticate enforces at most one authenticated connection per identity:
// the identity transition and the eviction of any prior session happen in a
// single critical section, so concurrent handshakes for one identity cannot
// leave two live sessions (or none). Most-recent-authentication wins; the
// prior session is force-closed with a duplicate_session reason. Concurrent
// sessions for one identity (multiple devices) are intentionally disallowed.
//
// # Reaper
//
// The Reaper sweeps on a fixed interval, removing entries idle beyond the
// configured maximum and emitting an aggregate stats snapshot (total,
// authenticated, counts by role) for observability.
package registry
