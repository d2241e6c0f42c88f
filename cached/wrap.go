package cached

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krisalay/memocache/api"
	"github.com/krisalay/memocache/internal/logging"
	"github.com/krisalay/memocache/types"
)

/*
Func wraps fn so that it goes through c first.

The returned function has the same shape as fn. When called it:
1. derives the cache key from its argument with key
2. returns the cached value if a fresh one exists
3. otherwise runs fn and caches the result for p.TTL(), only if fn succeeded

Errors from fn come back untouched and are never cached.

The policy, the cache and both functions are checked here, once. A bad
configuration returns a *PolicyError and no wrapper.
*/
func Func[A any, K comparable, V any](
	c api.Cache[K, V],
	p Policy,
	key func(A) K,
	fn func(context.Context, A) (V, error),
) (func(context.Context, A) (V, error), error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &PolicyError{Option: p.FieldName(), Err: ErrNilCache}
	}
	if key == nil {
		return nil, &PolicyError{Err: ErrNoKeyParameter}
	}
	if fn == nil {
		return nil, &PolicyError{Err: ErrNilFunc}
	}

	ttl := p.TTL()

	return func(ctx context.Context, arg A) (V, error) {
		k := key(arg)
		ctx = logging.WithAttrs(ctx, slog.String("cache_key", fmt.Sprint(k)))

		return c.GetOrInsertWith(ctx, k, ttl, func(ctx context.Context) (V, error) {
			return fn(ctx, arg)
		})
	}, nil
}

// MustFunc is like Func but panics on a bad policy. It is meant for
// package-level variables, where a policy mistake should stop the program at
// init time.
func MustFunc[A any, K comparable, V any](
	c api.Cache[K, V],
	p Policy,
	key func(A) K,
	fn func(context.Context, A) (V, error),
) func(context.Context, A) (V, error) {

	wrapped, err := Func(c, p, key, fn)
	if err != nil {
		panic(err)
	}
	return wrapped
}

// Identity is the key function for computations whose argument is the key.
func Identity[K comparable](k K) K { return k }

// Loader wraps a types.Loader. The key passed to Load is the cache key.
func Loader[K comparable, V any](c api.Cache[K, V], p Policy, l types.Loader[K, V]) (types.Loader[K, V], error) {
	if l == nil {
		return nil, &PolicyError{Err: ErrNilFunc}
	}

	fn, err := Func(c, p, Identity[K], l.Load)
	if err != nil {
		return nil, err
	}
	return types.LoaderFunc[K, V](fn), nil
}
