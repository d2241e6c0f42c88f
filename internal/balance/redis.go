package balance

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/krisalay/memocache/internal/errs"
)

// RedisSource reads balances stored as decimal strings under prefix+address.
type RedisSource struct {
	client *redis.Client
	prefix string
}

var _ Source = (*RedisSource)(nil)

func NewRedisSource(client *redis.Client, prefix string) *RedisSource {
	return &RedisSource{client: client, prefix: prefix}
}

func (s *RedisSource) key(address string) string {
	return s.prefix + address
}

func (s *RedisSource) Load(ctx context.Context, address string) (uint64, error) {
	raw, err := s.client.Get(ctx, s.key(address)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	if err != nil {
		return 0, errs.WithStack(errs.Wrap(err, "redis get balance"))
	}

	balance, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errs.Wrapf(err, "parse balance of %s", address)
	}
	return balance, nil
}

// Store writes a balance the way Load expects to find it.
func (s *RedisSource) Store(ctx context.Context, address string, balance uint64) error {
	if err := s.client.Set(ctx, s.key(address), strconv.FormatUint(balance, 10), 0).Err(); err != nil {
		return errs.WithStack(errs.Wrap(err, "redis set balance"))
	}
	return nil
}
