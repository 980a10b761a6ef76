package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLedger(t *testing.T) *RedisLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client)
}

func TestRedisLedgerBasics(t *testing.T) {
	ctx := context.Background()
	l := newTestRedisLedger(t)

	if _, err := l.Balance(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Balance(nobody) error = %v, want ErrAccountNotFound", err)
	}
	if err := l.TryDebit(ctx, "nobody", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("TryDebit(nobody) error = %v, want ErrAccountNotFound", err)
	}

	if err := l.CreateAccount(ctx, "u1", 100); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	// SETNX keeps an existing balance intact.
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

func TestRedisLedgerRejectsUncoveredDebit(t *testing.T) {
	ctx := context.Background()
	l := newTestRedisLedger(t)
	_ = l.CreateAccount(ctx, "u1", 1)

	if err := l.TryDebit(ctx, "u1", 2); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("TryDebit() error = %v, want ErrInsufficientCredits", err)
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != 1 {
		t.Errorf("Balance = %d, want 1", bal)
	}
}

func TestRedisLedgerConcurrentDebits(t *testing.T) {
	const (
		initial = 100
		amount  = 2
		workers = 60
	)
	ctx := context.Background()
	l := newTestRedisLedger(t)
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

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientCredits) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != initial/amount {
		t.Errorf("succeeded = %d, want %d", succeeded, initial/amount)
	}
	if bal, _ := l.Balance(ctx, "u1"); bal != 0 {
		t.Errorf("final balance = %d, want 0", bal)
	}
}
