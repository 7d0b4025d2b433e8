package session

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrNoSession      = errors.New("no session")
	ErrSessionRevoked = errors.New("session revoked")
)

// Reasons attached to the log entry when a presented credential is treated as anonymous.
const (
	ReasonInvalidToken     = "invalid_token"
	ReasonExpiredToken     = "expired_token"
	ReasonRevoked          = "revoked"
	ReasonRevocationLookup = "revocation_lookup_failed"
)

// RevocationStore tracks sessions ended by explicit sign-out before their token expired.
type RevocationStore interface {
	// IsRevoked reports whether sessionID was revoked.
	IsRevoked(ctx context.Context, sessionID string) (bool, error)

	// Revoke marks sessionID revoked until the given time, after which the token expires on its own.
	Revoke(ctx context.Context, sessionID string, until time.Time) error
}
