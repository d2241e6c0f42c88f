package balance

import (
	"errors"

	"github.com/krisalay/memocache/types"
)

// Source looks up the current balance of an address. Every implementation is
// slow or remote enough that callers go through Balances, not the Source.
type Source = types.Loader[string, uint64]

var (
	// ErrRPCUnavailable is returned by RPCSource for simulated request failures.
	ErrRPCUnavailable = errors.New("rpc request failed")

	// ErrUnknownAddress means the source has no balance for the address.
	ErrUnknownAddress = errors.New("unknown address")
)
