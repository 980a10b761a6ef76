// Package credits tracks per-user consumable balances. A debit either fully
// succeeds or is rejected; balances never go negative.
package credits

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInsufficientCredits is returned when a debit would push a balance
	// below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAccountNotFound is returned when no account exists for a user.
	ErrAccountNotFound = errors.New("credit account not found")
)

// Ledger is the account-store capability the dispatcher depends on. Debits
// against the same account are linearizable; different accounts never
// contend.
type Ledger interface {
	// CreateAccount creates an account with a starting balance. Creating an
	// account that already exists is a no-op.
	CreateAccount(ctx context.Context, userID string, balance int) error

	// Balance returns the current balance for a user.
	Balance(ctx context.Context, userID string) (int, error)

	// TryDebit atomically checks and decrements a balance. It returns
	// ErrInsufficientCredits when the balance cannot cover the amount.
	TryDebit(ctx context.Context, userID string, amount int) error
}

// MemoryLedger keeps balances in process memory. Each account carries its
// own mutex so debits for different users proceed in parallel.
type MemoryLedger struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
}

type memoryAccount struct {
	mu      sync.Mutex
	balance int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts: make(map[string]*memoryAccount),
	}
}

func (l *MemoryLedger) CreateAccount(ctx context.Context, userID string, balance int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[userID]; ok {
		return nil
	}
	l.accounts[userID] = &memoryAccount{balance: balance}
	return nil
}

func (l *MemoryLedger) Balance(ctx context.Context, userID string) (int, error) {
	l.mu.RLock()
	acct, ok := l.accounts[userID]
	l.mu.RUnlock()
	if !ok {
		return 0, ErrAccountNotFound
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance, nil
}

func (l *MemoryLedger) TryDebit(ctx context.Context, userID string, amount int) error {
	l.mu.RLock()
	acct, ok := l.accounts[userID]
	l.mu.RUnlock()
	if !ok {
		return ErrAccountNotFound
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()
	if acct.balance < amount {
		return ErrInsufficientCredits
	}
	acct.balance -= amount
	return nil
}
