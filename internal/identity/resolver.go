// ABOUTME: Resolves a bearer credential to an Identity via the identity store
// ABOUTME: The store lookup is raced against a bounded timeout

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrIdentityNotFound indicates the store has no record for the subject.
var ErrIdentityNotFound = errors.New("identity not found")

// Store is the external identity store contract. Lookup must return within a
// bounded interval or honor context cancellation; the resolver enforces its
// own timeout regardless.
type Store interface {
	LookupIdentity(ctx context.Context, id string) (*Identity, error)
}

// DefaultLookupTimeout bounds the identity store lookup during a handshake.
const DefaultLookupTimeout = 5 * time.Second

// Resolver authenticates handshake credentials.
type Resolver struct {
	verifier      TokenVerifier
	store         Store
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// NewResolver creates a resolver. A zero lookupTimeout uses the default.
func NewResolver(verifier TokenVerifier, store Store, lookupTimeout time.Duration, logger *slog.Logger) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		verifier:      verifier,
		store:         store,
		lookupTimeout: lookupTimeout,
		logger:        logger.With("component", "identity-resolver"),
	}
}

// lookupResult carries the outcome of the asynchronous store lookup.
type lookupResult struct {
	ident *Identity
	err   error
}

// Authenticate validates the credential and resolves the Identity behind it.
// Failures return a RejectError; the credential is checked before any store
// lookup, so a missing or malformed credential never queries the store.
func (r *Resolver) Authenticate(ctx context.Context, credential, sourceAddr string) (*Identity, error) {
	if credential == "" {
		return nil, Reject(ReasonMissingCredential, nil)
	}

	subject, err := r.verifier.Verify(credential)
	if err != nil {
		r.logger.Warn("credential verification failed",
			"source_addr", sourceAddr,
			"reason", ReasonOf(err),
		)
		return nil, err
	}

	// Race the store lookup against the timeout. Whichever settles first
	// determines the outcome; there is no retry on timeout. The result
	// channel is buffered so an abandoned lookup goroutine can still exit.
	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	resultCh := make(chan lookupResult, 1)
	go func() {
		ident, err := r.store.LookupIdentity(lookupCtx, subject)
		resultCh <- lookupResult{ident: ident, err: err}
	}()

	select {
	case <-lookupCtx.Done():
		r.logger.Warn("identity lookup timed out",
			"subject", subject,
			"timeout", r.lookupTimeout,
		)
		return nil, Reject(ReasonLookupTimeout, lookupCtx.Err())

	case res := <-resultCh:
		if res.err != nil {
			if errors.Is(res.err, ErrIdentityNotFound) {
				return nil, Reject(ReasonIdentityNotFound, res.err)
			}
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, Reject(ReasonLookupTimeout, res.err)
			}
			r.logger.Error("identity lookup failed",
				"subject", subject,
				"error", res.err,
			)
			return nil, Reject(ReasonServerError, res.err)
		}
		return res.ident, nil
	}
}
