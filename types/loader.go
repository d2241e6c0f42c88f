package types

import "context"

// Loader is the contract between the cache and whatever produces the values.
type Loader[K comparable, V any] interface {

	/*
		Load is called when the cache misses. The key was not found in memory (or
		only a stale copy was), so the cache asks the Loader to compute it.
		1. Cache checks memory → key not found or stale
		2. Cache calls Load(key)
		3. Loader fetches from DB/API/RPC
		4. Cache stores the result in memory, but only if Load succeeded
		5. Cache returns the value or the Loader's error, untouched
	*/
	Load(ctx context.Context, key K) (V, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

func (f LoaderFunc[K, V]) Load(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}
