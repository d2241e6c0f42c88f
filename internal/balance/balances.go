package balance

import (
	"context"
	"errors"
	"strings"
	"time"

	cache "github.com/krisalay/memocache"
	"github.com/krisalay/memocache/cached"
)

//go:generate go run ../../cmd/cachegen --file balances.go

/*
Balances answers balance queries for addresses.

Two memoized entry points share one cache:
  - BalanceCached is generated from the directive on Balance and always
    caches for 10 seconds.
  - Lookup is built at runtime from a configured cached.Policy.
*/
type Balances struct {
	cache  *cache.Cache[string, uint64]
	source Source
	lookup func(context.Context, string) (uint64, error)
}

// NewBalances wires source behind c. p is the runtime policy used by Lookup.
func NewBalances(c *cache.Cache[string, uint64], source Source, p cached.Policy) (*Balances, error) {
	if c == nil {
		return nil, &cached.PolicyError{Option: p.FieldName(), Err: cached.ErrNilCache}
	}
	if source == nil {
		return nil, errors.New("balance source is required")
	}

	b := &Balances{cache: c, source: source}

	lookup, err := cached.Func[string, string, uint64](c, p, normalize, b.Balance)
	if err != nil {
		return nil, err
	}
	b.lookup = lookup
	return b, nil
}

// Balance asks the source directly. Callers normally want BalanceCached or Lookup.
//
//memocache:cached cache_time=10 cache_field_name=cache
func (b *Balances) Balance(ctx context.Context, address string) (uint64, error) {
	return b.source.Load(ctx, address)
}

// Lookup returns the balance of address, memoized under the configured policy.
func (b *Balances) Lookup(ctx context.Context, address string) (uint64, error) {
	return b.lookup(ctx, address)
}

// TTL reports how long the balance Lookup cached for address stays fresh,
// or a negative duration when nothing fresh is cached.
func (b *Balances) TTL(address string) time.Duration {
	return b.cache.TTL(normalize(address))
}

// Cache exposes the shared cache.
func (b *Balances) Cache() *cache.Cache[string, uint64] {
	return b.cache
}

func normalize(address string) string {
	return strings.TrimSpace(address)
}
