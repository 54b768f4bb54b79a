package usecase

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/model/auth"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
	"github.com/secmon-lab/recall/pkg/repository/memory"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthUseCase struct {
	repo       interfaces.Repository
	signingKey []byte
	now        func() time.Time
}

// AuthOption is a functional option for AuthUseCase
type AuthOption func(*AuthUseCase)

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) AuthOption {
	return func(uc *AuthUseCase) {
		uc.now = now
	}
}

func NewAuthUseCase(repo interfaces.Repository, signingKey []byte, options ...AuthOption) (*AuthUseCase, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if len(signingKey) == 0 {
		return nil, goerr.New("signing key is required")
	}

	uc := &AuthUseCase{
		repo:       repo,
		signingKey: signingKey,
		now:        time.Now,
	}

	for _, opt := range options {
		opt(uc)
	}

	return uc, nil
}

// Register creates a new account with a bcrypt password hash.
func (uc *AuthUseCase) Register(ctx context.Context, email, name, password string) (*model.Account, error) {
	if email == "" || name == "" || password == "" {
		return nil, goerr.Wrap(ErrBadRequest, "name, email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, goerr.Wrap(ErrBadRequest, "invalid email format")
	}
	if len(password) < minPasswordLength {
		return nil, goerr.Wrap(ErrBadRequest, "password too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to hash password")
	}

	account := &model.Account{
		ID:           model.NewAccountID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    uc.now().UTC(),
	}

	if err := uc.repo.Account().Create(ctx, account); err != nil {
		if errors.Is(err, memory.ErrEmailTaken) || errors.Is(err, firestore.ErrEmailTaken) {
			return nil, goerr.Wrap(ErrEmailTaken, "registration rejected", goerr.V("email", email))
		}
		return nil, goerr.Wrap(err, "failed to create account")
	}

	logging.From(ctx).Info("account registered", "accountID", account.ID)
	return account, nil
}

// Login verifies the credentials and mints a signed session token. The
// stored token version is bumped first, so every earlier session of the
// account is revoked by a successful login.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (string, *model.Account, error) {
	if email == "" || password == "" {
		return "", nil, goerr.Wrap(ErrBadRequest, "email and password are required")
	}

	account, err := uc.repo.Account().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound) {
			return "", nil, goerr.Wrap(ErrUnauthorized, "unknown email")
		}
		return "", nil, goerr.Wrap(err, "failed to look up account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, goerr.Wrap(ErrUnauthorized, "password mismatch")
	}

	version, err := uc.repo.Account().IncrementTokenVersion(ctx, account.ID)
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to bump token version")
	}
	account.TokenVersion = version

	token, err := uc.mintToken(account)
	if err != nil {
		return "", nil, err
	}

	logging.From(ctx).Info("login succeeded", "accountID", account.ID, "tokenVersion", version)
	return token, account, nil
}

// Validate parses and verifies a bearer credential, then checks the
// embedded token version against the stored one. A stale version means
// the session was revoked and the credential is rejected even though its
// signature and expiry are still valid.
func (uc *AuthUseCase) Validate(ctx context.Context, raw string) (*auth.Session, error) {
	if raw == "" {
		return nil, goerr.Wrap(ErrUnauthorized, "credential is required")
	}

	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, uc.signingKey),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(uc.now)),
		jwt.WithAcceptableSkew(10*time.Second),
	)
	if err != nil {
		return nil, goerr.Wrap(ErrUnauthorized, "invalid credential")
	}

	accountID := types.AccountID(token.Subject())
	if err := accountID.Validate(); err != nil {
		return nil, goerr.Wrap(ErrUnauthorized, "credential has no subject")
	}

	version, err := tokenVersionClaim(token)
	if err != nil {
		return nil, goerr.Wrap(ErrUnauthorized, "credential has no version claim")
	}

	account, err := uc.repo.Account().Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound) {
			return nil, goerr.Wrap(ErrUnauthorized, "account no longer exists")
		}
		return nil, goerr.Wrap(err, "failed to look up account")
	}

	if account.TokenVersion != version {
		return nil, goerr.Wrap(ErrUnauthorized, "session revoked",
			goerr.V("embedded", version), goerr.V("stored", account.TokenVersion))
	}

	return &auth.Session{
		AccountID:    account.ID,
		Name:         account.Name,
		TokenVersion: version,
		IssuedAt:     token.IssuedAt(),
		ExpiresAt:    token.Expiration(),
	}, nil
}

// Logout revokes every outstanding session of the account by bumping the
// stored token version.
func (uc *AuthUseCase) Logout(ctx context.Context, accountID types.AccountID) error {
	if _, err := uc.repo.Account().IncrementTokenVersion(ctx, accountID); err != nil {
		return goerr.Wrap(err, "failed to revoke sessions", goerr.V("accountID", accountID))
	}

	logging.From(ctx).Info("sessions revoked", "accountID", accountID)
	return nil
}

func (uc *AuthUseCase) mintToken(account *model.Account) (string, error) {
	now := uc.now().UTC()
	token, err := jwt.NewBuilder().
		Subject(account.ID.String()).
		IssuedAt(now).
		Expiration(now.Add(auth.SessionTTL)).
		Claim("name", account.Name).
		Claim(auth.ClaimTokenVersion, account.TokenVersion).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build token")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, uc.signingKey))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}

	return string(signed), nil
}

// tokenVersionClaim extracts the version claim, which JSON decoding may
// surface as either a float64 or an int64.
func tokenVersionClaim(token jwt.Token) (int64, error) {
	raw, ok := token.Get(auth.ClaimTokenVersion)
	if !ok {
		return 0, goerr.New("version claim missing")
	}

	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, goerr.New("unexpected version claim type", goerr.V("claim", raw))
	}
}
