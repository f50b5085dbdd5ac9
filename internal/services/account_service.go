package services

import (
	"context"
	"errors"
	"time"

	"topup-service/internal/auth"
	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type TokenPair struct {
	Access    string    `json:"access_token"`
	Refresh   string    `json:"refresh_token"`
	AccessExp time.Time `json:"access_expires_at"`
}

type AccountService struct {
	accounts repo.Accounts
	tm       *auth.TokenManager
}

func NewAccountService(accounts repo.Accounts, tm *auth.TokenManager) *AccountService {
	return &AccountService{accounts: accounts, tm: tm}
}

func (s *AccountService) Register(ctx context.Context, username, email, password string) (models.Account, error) {
	acct := models.Account{Username: username, Email: email}
	if err := acct.Validate(); err != nil {
		return models.Account{}, err
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return models.Account{}, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return models.Account{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Account{}, err
	}
	return s.accounts.Create(ctx, username, email, hash, "user")
}

func (s *AccountService) Login(ctx context.Context, email, password string) (models.Account, TokenPair, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.Account{}, TokenPair{}, ErrInvalidLogin
		}
		return models.Account{}, TokenPair{}, err
	}
	if err := auth.VerifyPassword(password, acct.PasswordHash); err != nil {
		return models.Account{}, TokenPair{}, ErrInvalidLogin
	}
	pair, err := s.issue(acct)
	return acct, pair, err
}

// Refresh exchanges a valid refresh token for a new pair. Access tokens are
// rejected here so a leaked short-lived token cannot renew itself.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, isRefresh, err := s.tm.ParseAny(refreshToken)
	if err != nil || !isRefresh {
		return TokenPair{}, ErrInvalidLogin
	}
	acct, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		return TokenPair{}, ErrInvalidLogin
	}
	return s.issue(acct)
}

func (s *AccountService) issue(acct models.Account) (TokenPair, error) {
	access, refresh, exp, err := s.tm.GeneratePair(acct.ID, acct.Role)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh, AccessExp: exp}, nil
}
