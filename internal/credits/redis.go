package credits

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps balances in Redis. The check-and-decrement runs as a Lua
// script so concurrent debits against the same account are atomic on the
// Redis side.
type RedisLedger struct {
	redis     *redis.Client
	keyPrefix string
}

// debitScript rejects the debit outright when the balance cannot cover it.
var debitScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local balance = redis.call('GET', key)
	if not balance then
		return -1
	end

	balance = tonumber(balance)
	if balance < amount then
		return -2
	end

	return redis.call('DECRBY', key, amount)
`)

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{
		redis:     client,
		keyPrefix: "credits:",
	}
}

func (l *RedisLedger) key(userID string) string {
	return l.keyPrefix + userID
}

func (l *RedisLedger) CreateAccount(ctx context.Context, userID string, balance int) error {
	// SETNX keeps an existing balance intact.
	if err := l.redis.SetNX(ctx, l.key(userID), balance, 0).Err(); err != nil {
		return fmt.Errorf("failed to create credit account: %w", err)
	}
	return nil
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int, error) {
	val, err := l.redis.Get(ctx, l.key(userID)).Int()
	if err == redis.Nil {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return val, nil
}

func (l *RedisLedger) TryDebit(ctx context.Context, userID string, amount int) error {
	res, err := debitScript.Run(ctx, l.redis, []string{l.key(userID)}, amount).Int64()
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	switch res {
	case -1:
		return ErrAccountNotFound
	case -2:
		return ErrInsufficientCredits
	}
	return nil
}
