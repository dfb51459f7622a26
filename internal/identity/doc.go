// Package identity resolves bearer credentials to authenticated identities
// for realtime handshakes.
//
// # Credential Verification
//
// Clients present an HS256-signed JWT at connect time. Verification
// distinguishes three failure classes because the client-visible rejection
// differs for each:
//
//   - malformed_credential: the token structure is invalid
//   - expired_credential: the token's expiry is in the past
//   - invalid_credential: the signature does not verify
//
// # Subject Claim Extraction
//
// The subject identifier is extracted by trying an ordered list of claim
// names; the first non-empty match wins:
//
//	claim     origin
//	-----     ------
//	id        tokens issued by the login endpoint
//	user_id   legacy mobile client tokens
//	sub       standard JWT subject
//
// A credential with none of these claims is rejected as malformed before any
// store lookup.
//
// # Identity Resolution
//
// After verification, the Resolver looks up the Identity in the external
// store, racing the lookup against a bounded timeout (default 5s):
//
//	resolver := identity.NewResolver(verifier, store, 5*time.Second, logger)
//	ident, err := resolver.Authenticate(ctx, credential, sourceAddr)
//
// A timeout surfaces as lookup_timeout and is not retried server-side; the
// client must re-initiate the handshake.
package identity
