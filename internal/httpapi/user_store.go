package httpapi

import (
	"context"
	"errors"
	"time"

	"chat_gateway/internal/auth"
	"chat_gateway/internal/credits"
	"chat_gateway/internal/models"
	"chat_gateway/internal/storage"
)

// databaseUserStore adapts the Postgres user repository to the auth.UserStore
// contract, translating storage sentinels into the auth error space.
type databaseUserStore struct {
	repo *storage.UserRepository
}

func (s *databaseUserStore) Create(ctx context.Context, user *models.User) error {
	err := s.repo.Create(ctx, user)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		return auth.ErrEmailTaken
	}
	return err
}

func (s *databaseUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, auth.ErrUserNotFound
	}
	return user, err
}

func (s *databaseUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, auth.ErrUserNotFound
	}
	return user, err
}

func (s *databaseUserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	err := s.repo.UpdateLastLogin(ctx, id, at)
	if errors.Is(err, storage.ErrUserNotFound) {
		return auth.ErrUserNotFound
	}
	return err
}

// databaseLedger adapts the same repository to the credits.Ledger contract.
// The credit balance lives on the user row, so account creation happens with
// user creation and CreateAccount is a no-op here.
type databaseLedger struct {
	repo *storage.UserRepository
}

func (l *databaseLedger) CreateAccount(ctx context.Context, userID string, balance int) error {
	return nil
}

func (l *databaseLedger) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := l.repo.Balance(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return 0, credits.ErrAccountNotFound
	}
	return balance, err
}

func (l *databaseLedger) TryDebit(ctx context.Context, userID string, amount int) error {
	err := l.repo.TryDebit(ctx, userID, amount)
	switch {
	case errors.Is(err, storage.ErrInsufficientCredits):
		return credits.ErrInsufficientCredits
	case errors.Is(err, storage.ErrUserNotFound):
		return credits.ErrAccountNotFound
	}
	return err
}
