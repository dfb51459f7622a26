// ABOUTME: Tests for the identity resolver and its lookup-vs-timeout race
// ABOUTME: Verifies the store is never queried for unusable credentials

package identity

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStore is a configurable Store for resolver tests.
type fakeStore struct {
	ident   *Identity
	err     error
	delay   time.Duration
	lookups atomic.Int64
}

func (s *fakeStore) LookupIdentity(ctx context.Context, id string) (*Identity, error) {
	s.lookups.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.ident, nil
}

func newTestResolver(store Store, timeout time.Duration) (*Resolver, *JWTVerifier) {
	verifier := NewJWTVerifier([]byte("resolver-test-secret"))
	return NewResolver(verifier, store, timeout, slog.Default()), verifier
}

func TestResolver_Success(t *testing.T) {
	store := &fakeStore{ident: &Identity{ID: "u1", Role: RoleAgent, DisplayName: "Dana"}}
	resolver, verifier := newTestResolver(store, time.Second)

	credential, err := verifier.Generate("u1", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ident, err := resolver.Authenticate(context.Background(), credential, "10.0.0.1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if ident.ID != "u1" || ident.Role != RoleAgent || ident.DisplayName != "Dana" {
		t.Errorf("Authenticate() = %+v, want u1/agent/Dana", ident)
	}
}

func TestResolver_MissingCredentialSkipsLookup(t *testing.T) {
	store := &fakeStore{ident: &Identity{ID: "u1", Role: RoleUser}}
	resolver, _ := newTestResolver(store, time.Second)

	_, err := resolver.Authenticate(context.Background(), "", "10.0.0.1")
	if err == nil {
		t.Fatal("Authenticate() expected error")
	}
	if got := ReasonOf(err); got != ReasonMissingCredential {
		t.Errorf("ReasonOf() = %q, want %q", got, ReasonMissingCredential)
	}
	if n := store.lookups.Load(); n != 0 {
		t.Errorf("store queried %d times, want 0", n)
	}
}

func TestResolver_NoSubjectClaimSkipsLookup(t *testing.T) {
	store := &fakeStore{ident: &Identity{ID: "u1", Role: RoleUser}}
	resolver, _ := newTestResolver(store, time.Second)

	// Signed with the right secret but carrying no recognized subject claim.
	credential := signToken(t, []byte("resolver-test-secret"), map[string]interface{}{
		"role": "agent",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	_, err := resolver.Authenticate(context.Background(), credential, "10.0.0.1")
	if err == nil {
		t.Fatal("Authenticate() expected error")
	}
	if got := ReasonOf(err); got != ReasonMalformedCredential {
		t.Errorf("ReasonOf() = %q, want %q", got, ReasonMalformedCredential)
	}
	if n := store.lookups.Load(); n != 0 {
		t.Errorf("store queried %d times, want 0", n)
	}
}

func TestResolver_LookupTimeout(t *testing.T) {
	store := &fakeStore{
		ident: &Identity{ID: "u1", Role: RoleUser},
		delay: time.Second,
	}
	resolver, verifier := newTestResolver(store, 20*time.Millisecond)

	credential, err := verifier.Generate("u1", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	start := time.Now()
	_, err = resolver.Authenticate(context.Background(), credential, "10.0.0.1")
	if err == nil {
		t.Fatal("Authenticate() expected timeout error")
	}
	if got := ReasonOf(err); got != ReasonLookupTimeout {
		t.Errorf("ReasonOf() = %q, want %q", got, ReasonLookupTimeout)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout took %v, should settle near the 20ms deadline", elapsed)
	}
}

func TestResolver_IdentityNotFound(t *testing.T) {
	store := &fakeStore{err: ErrIdentityNotFound}
	resolver, verifier := newTestResolver(store, time.Second)

	credential, err := verifier.Generate("ghost", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = resolver.Authenticate(context.Background(), credential, "10.0.0.1")
	if err == nil {
		t.Fatal("Authenticate() expected error")
	}
	if got := ReasonOf(err); got != ReasonIdentityNotFound {
		t.Errorf("ReasonOf() = %q, want %q", got, ReasonIdentityNotFound)
	}
}

func TestResolver_ExpiredCredential(t *testing.T) {
	store := &fakeStore{ident: &Identity{ID: "u1", Role: RoleUser}}
	resolver, verifier := newTestResolver(store, time.Second)

	credential, err := verifier.Generate("u1", -time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = resolver.Authenticate(context.Background(), credential, "10.0.0.1")
	if err == nil {
		t.Fatal("Authenticate() expected error")
	}
	if got := ReasonOf(err); got != ReasonExpiredCredential {
		t.Errorf("ReasonOf() = %q, want %q", got, ReasonExpiredCredential)
	}
	if n := store.lookups.Load(); n != 0 {
		t.Errorf("store queried %d times, want 0", n)
	}
}
