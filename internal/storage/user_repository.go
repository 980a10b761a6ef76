package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chat_gateway/internal/models"
)

// UserRepository handles user and credit-balance database operations.
// The credits column lives on the users row, so the conditional UPDATE in
// TryDebit is the atomicity boundary for concurrent debits.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with its starting credit balance
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, credits)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := r.db.conn.QueryRowContext(
		ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Credits,
	).Scan(&user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, username, email, password_hash, credits, created_at, last_login_at
		FROM users
		WHERE lower(email) = lower($1)
	`

	err := r.db.conn.GetContext(ctx, &user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var user models.User
	query := `
		SELECT id, username, email, password_hash, credits, created_at, last_login_at
		FROM users
		WHERE id = $1
	`

	err = r.db.conn.GetContext(ctx, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateLastLogin stamps the last successful login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrUserNotFound
	}

	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Balance returns the current credit balance for a user
func (r *UserRepository) Balance(ctx context.Context, id string) (int, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return 0, ErrUserNotFound
	}

	var balance int
	err = r.db.conn.GetContext(ctx, &balance,
		`SELECT credits FROM users WHERE id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TryDebit atomically checks and decrements a balance. The WHERE clause
// rejects the whole debit when the balance cannot cover it, so two
// concurrent debits can never both drain the same credits.
func (r *UserRepository) TryDebit(ctx context.Context, id string, amount int) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrUserNotFound
	}

	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE users
		SET credits = credits - $2
		WHERE id = $1 AND credits >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if n == 0 {
		// Distinguish a missing user from an uncovered debit.
		if _, lookupErr := r.Balance(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return ErrInsufficientCredits
	}
	return nil
}
