package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

// NewAccountID generates a new random AccountID
func NewAccountID() types.AccountID {
	return types.AccountID(uuid.New().String())
}

// Account holds the identity and credential state of a user. TokenVersion
// is the revocation counter: a session credential is valid only while the
// version it was minted with equals the stored one, so bumping the version
// invalidates every outstanding credential in O(1).
type Account struct {
	ID           types.AccountID
	Email        string
	Name         string
	PasswordHash string
	TokenVersion int64
	CreatedAt    time.Time
}

// Validate checks if the Account has the fields required for persistence
func (a *Account) Validate() error {
	if err := a.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid account ID")
	}
	if a.Email == "" {
		return goerr.New("account email is required")
	}
	if a.PasswordHash == "" {
		return goerr.New("account password hash is required")
	}
	return nil
}
