package interfaces

import (
	"context"

	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// Create stores a new account. Fails if the email is already taken.
	Create(ctx context.Context, account *model.Account) error

	// Get retrieves an account by ID
	Get(ctx context.Context, accountID types.AccountID) (*model.Account, error)

	// GetByEmail retrieves an account by email address
	GetByEmail(ctx context.Context, email string) (*model.Account, error)

	// IncrementTokenVersion atomically bumps the revocation counter and
	// returns the new version. Every credential minted with an older
	// version becomes invalid the moment this returns.
	IncrementTokenVersion(ctx context.Context, accountID types.AccountID) (int64, error)
}
