package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*model.Account
	byEmail  map[string]types.AccountID
}

func newAccountRepository() *accountRepository {
	return &accountRepository{
		accounts: make(map[types.AccountID]*model.Account),
		byEmail:  make(map[string]types.AccountID),
	}
}

func copyAccount(a *model.Account) *model.Account {
	copied := *a
	return &copied
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if err := account.Validate(); err != nil {
		return goerr.Wrap(err, "invalid account")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return goerr.Wrap(ErrEmailTaken, "email already registered", goerr.V("email", account.Email))
	}
	if _, exists := r.accounts[account.ID]; exists {
		return goerr.Wrap(ErrEmailTaken, "account already exists", goerr.V("accountID", account.ID))
	}

	r.accounts[account.ID] = copyAccount(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *accountRepository) Get(ctx context.Context, accountID types.AccountID) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[accountID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "account not found", goerr.V("accountID", accountID))
	}

	return copyAccount(account), nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accountID, exists := r.byEmail[email]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "account not found", goerr.V("email", email))
	}

	return copyAccount(r.accounts[accountID]), nil
}

func (r *accountRepository) IncrementTokenVersion(ctx context.Context, accountID types.AccountID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[accountID]
	if !exists {
		return 0, goerr.Wrap(ErrNotFound, "account not found", goerr.V("accountID", accountID))
	}

	account.TokenVersion++
	return account.TokenVersion, nil
}
