package auth

import (
	"context"
	"time"

	"github.com/secmon-lab/recall/pkg/domain/types"
)

// Claim names used in the session JWS payload
const (
	ClaimTokenVersion = "ver"
)

// SessionTTL is the lifetime of a minted credential. Expiry is enforced
// by the JWT validation itself, independently of version-based revocation.
const SessionTTL = 24 * time.Hour

// Session is the validated identity extracted from a bearer credential.
type Session struct {
	AccountID    types.AccountID
	Name         string
	TokenVersion int64
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

type ctxSessionKey struct{}

// ContextWithSession attaches the validated session to the context
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}

// SessionFromContext retrieves the validated session from the context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxSessionKey{}).(*Session)
	return s, ok
}
