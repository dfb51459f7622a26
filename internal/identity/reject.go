// ABOUTME: Handshake rejection reasons and the error type that carries them
// ABOUTME: Every failed connect attempt surfaces exactly one reason code

package identity

import (
	"errors"
	"fmt"
)

// Reason is the client-visible code attached to a rejected handshake.
type Reason string

// The closed set of rejection reasons.
const (
	ReasonMissingCredential   Reason = "missing_credential"
	ReasonMalformedCredential Reason = "malformed_credential"
	ReasonInvalidCredential   Reason = "invalid_credential"
	ReasonExpiredCredential   Reason = "expired_credential"
	ReasonLookupTimeout       Reason = "lookup_timeout"
	ReasonIdentityNotFound    Reason = "identity_not_found"
	ReasonRateLimitExceeded   Reason = "rate_limit_exceeded"
	ReasonServerError         Reason = "server_error"
)

// RejectError is an authentication or rate-limit failure with its reason code.
type RejectError struct {
	Reason Reason
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("handshake rejected (%s)", e.Reason)
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

// Reject wraps err with a rejection reason. err may be nil.
func Reject(reason Reason, err error) *RejectError {
	return &RejectError{Reason: reason, Err: err}
}

// ReasonOf extracts the rejection reason from err.
// Unexpected errors map to ReasonServerError.
func ReasonOf(err error) Reason {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonServerError
}
