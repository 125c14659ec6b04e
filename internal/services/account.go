package services

import (
	"context"
	"fmt"
	"time"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// TokenSealer encrypts and decrypts Instagram access tokens at rest.
type TokenSealer interface {
	Seal(token string) (string, error)
	Open(sealed string) (string, error)
}

// TokenRefresher exchanges long-lived tokens for fresh ones.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, accessToken string) (string, time.Duration, error)
}

// AccountService manages connected Instagram business accounts.
type AccountService struct {
	store     store.Store
	sealer    TokenSealer
	refresher TokenRefresher
}

func NewAccountService(s store.Store, sealer TokenSealer, refresher TokenRefresher) *AccountService {
	return &AccountService{store: s, sealer: sealer, refresher: refresher}
}

// Connect stores a newly linked account with its access token sealed.
func (s *AccountService) Connect(ctx context.Context, userID, igUserID, username, accessToken string, expiresAt *time.Time) (*model.InstagramAccount, error) {
	if igUserID == "" || username == "" {
		return nil, fmt.Errorf("%w: igUserId and username are required", model.ErrValidation)
	}
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", model.ErrValidation)
	}
	sealed, err := s.sealer.Seal(accessToken)
	if err != nil {
		return nil, err
	}
	a := &model.InstagramAccount{
		UserID:         userID,
		IGUserID:       igUserID,
		Username:       username,
		SealedToken:    sealed,
		TokenExpiresAt: expiresAt,
	}
	return s.store.Accounts().Create(ctx, a)
}

func (s *AccountService) GetAccount(ctx context.Context, userID, accountID string) (*model.InstagramAccount, error) {
	return s.store.Accounts().Get(ctx, userID, accountID)
}

func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]*model.InstagramAccount, error) {
	return s.store.Accounts().List(ctx, userID)
}

func (s *AccountService) Disconnect(ctx context.Context, userID, accountID string) error {
	return s.store.Accounts().Delete(ctx, userID, accountID)
}

// AccessToken unseals the stored Graph API token for an account.
func (s *AccountService) AccessToken(a *model.InstagramAccount) (string, error) {
	return s.sealer.Open(a.SealedToken)
}

// RefreshAccessToken refreshes a token nearing expiry and re-seals the
// replacement in place.
func (s *AccountService) RefreshAccessToken(ctx context.Context, userID, accountID string) (*model.InstagramAccount, error) {
	a, err := s.store.Accounts().Get(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	token, err := s.sealer.Open(a.SealedToken)
	if err != nil {
		return nil, err
	}
	fresh, ttl, err := s.refresher.RefreshToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("refresh token for account %s: %w", accountID, err)
	}
	sealed, err := s.sealer.Seal(fresh)
	if err != nil {
		return nil, err
	}
	exp := time.Now().UTC().Add(ttl)
	if err := s.store.Accounts().UpdateToken(ctx, a.AccountID, sealed, &exp); err != nil {
		return nil, err
	}
	a.SealedToken = sealed
	a.TokenExpiresAt = &exp
	return a, nil
}
