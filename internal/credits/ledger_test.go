package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryLedgerBasics(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	if _, err := l.Balance(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Balance(nobody) error = %v, want ErrAccountNotFound", err)
	}
	if err := l.TryDebit(ctx, "nobody", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("TryDebit(nobody) error = %v, want ErrAccountNotFound", err)
	}

	if err := l.CreateAccount(ctx, "u1", 100); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	// Creating twice keeps the existing balance.
	if err := l.CreateAccount(ctx, "u1", 999); err != nil {
		t.Fatalf("CreateAccount() second call error = %v", err)
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != 100 {
		t.Errorf("Balance = %d, want 100", bal)
	}

	if err := l.TryDebit(ctx, "u1", 2); err != nil {
		t.Errorf("TryDebit() error = %v", err)
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != 98 {
		t.Errorf("Balance after debit = %d, want 98", bal)
	}
}

// A debit that the balance cannot cover is rejected in its entirety and
// leaves the balance untouched.
func TestMemoryLedgerRejectsUncoveredDebit(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.CreateAccount(ctx, "u1", 1)

	if err := l.TryDebit(ctx, "u1", 2); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("TryDebit() error = %v, want ErrInsufficientCredits", err)
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != 1 {
		t.Errorf("Balance = %d, want 1", bal)
	}
}

// N concurrent debits of amount A against balance B succeed exactly
// floor(B/A) times and leave B - A*floor(B/A).
func TestMemoryLedgerLinearizable(t *testing.T) {
	const (
		initial = 100
		amount  = 3
		workers = 50
	)
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.CreateAccount(ctx, "u1", initial)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.TryDebit(ctx, "u1", amount)
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	wantSuccess := initial / amount // 33
	if succeeded != wantSuccess {
		t.Errorf("succeeded = %d, want %d", succeeded, wantSuccess)
	}
	if rejected != workers-wantSuccess {
		t.Errorf("rejected = %d, want %d", rejected, workers-wantSuccess)
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != initial-amount*wantSuccess {
		t.Errorf("final balance = %d, want %d", bal, initial-amount*wantSuccess)
	}
}

// Two concurrent image-generation charges against 100 credits both succeed
// and leave 96.
func TestMemoryLedgerConcurrentImageCharges(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.CreateAccount(ctx, "u1", 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.TryDebit(ctx, "u1", 2)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("debit %d failed: %v", i, err)
		}
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != 96 {
		t.Errorf("balance = %d, want 96", bal)
	}
}

// Debits against different accounts never contend.
func TestMemoryLedgerIndependentAccounts(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	const users = 10
	for i := 0; i < users; i++ {
		_ = l.CreateAccount(ctx, userID(i), 10)
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = l.TryDebit(ctx, userID(i), 2)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < users; i++ {
		if bal, _ := l.Balance(ctx, userID(i)); bal != 0 {
			t.Errorf("user %d balance = %d, want 0", i, bal)
		}
	}
}

func userID(i int) string {
	return string(rune('a' + i))
}
