// Package cached turns a plain computation into a cache-aware one.
//
// A Policy declares how long results live (cache_time, in seconds) and which
// cache field the static generator should route through (cache_field_name).
// Func and Loader apply a policy at runtime; the cachegen package applies the
// same policy at build time. Configuration mistakes surface as *PolicyError
// when the wrapper is built, never when it is called.
package cached

import (
	"errors"
	"fmt"
	"go/token"
	"strconv"
	"strings"
	"time"
)

// Recognized policy option names. Any other option is ignored.
const (
	OptionCacheTime      = "cache_time"
	OptionCacheFieldName = "cache_field_name"

	DefaultCacheFieldName = "cache"
)

var (
	ErrMissingCacheTime     = errors.New("cache_time must be specified")
	ErrInvalidCacheTime     = errors.New("cache_time must be a positive integer number of seconds")
	ErrInvalidFieldName     = errors.New("cache_field_name must be a Go identifier")
	ErrNoKeyParameter       = errors.New("expected at least one parameter usable as cache key")
	ErrNilCache             = errors.New("cache instance is required")
	ErrNilFunc              = errors.New("computation is required")
	ErrUnsupportedSignature = errors.New("computation must be a method returning (value, error)")
)

// PolicyError reports a caching policy that cannot produce a wrapper.
type PolicyError struct {
	// Option is the policy option or element at fault, e.g. "cache_time".
	Option string
	// Target names what was being wrapped, when known.
	Target string
	Err    error
}

func (e *PolicyError) Error() string {
	var b strings.Builder
	b.WriteString("cached: ")
	if e.Target != "" {
		b.WriteString(e.Target)
		b.WriteString(": ")
	}
	if e.Option != "" {
		b.WriteString(e.Option)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *PolicyError) Unwrap() error { return e.Err }

// Policy is the declared caching behaviour of one computation.
type Policy struct {
	// CacheTime is the time-to-live in whole seconds. Required, must be > 0.
	CacheTime int
	// CacheFieldName is the receiver field holding the cache. Defaults to "cache".
	CacheFieldName string
}

/*
ParsePolicy reads a policy from option name/value pairs, e.g. the ones
parsed from a `//memocache:cached cache_time=10` directive.

- cache_time is required and must be a positive integer
- cache_field_name defaults to "cache" and must be an identifier; quotes are stripped
- every other option is ignored
*/
func ParsePolicy(opts map[string]string) (Policy, error) {
	p := Policy{CacheFieldName: DefaultCacheFieldName}

	raw, ok := opts[OptionCacheTime]
	if !ok || strings.TrimSpace(raw) == "" {
		return Policy{}, &PolicyError{Option: OptionCacheTime, Err: ErrMissingCacheTime}
	}

	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return Policy{}, &PolicyError{Option: OptionCacheTime, Err: fmt.Errorf("%w: %q", ErrInvalidCacheTime, raw)}
	}
	p.CacheTime = secs

	if name, ok := opts[OptionCacheFieldName]; ok {
		p.CacheFieldName = strings.Trim(strings.TrimSpace(name), `"`)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks a policy built in code. A struct cannot tell an unset
// CacheTime from an explicit 0, so 0 reports ErrMissingCacheTime and only a
// negative value reports ErrInvalidCacheTime. ParsePolicy sees the options
// themselves and reports an explicit 0 as invalid.
func (p Policy) Validate() error {
	if p.CacheTime == 0 {
		return &PolicyError{Option: OptionCacheTime, Err: ErrMissingCacheTime}
	}
	if p.CacheTime < 0 {
		return &PolicyError{Option: OptionCacheTime, Err: fmt.Errorf("%w: %d", ErrInvalidCacheTime, p.CacheTime)}
	}
	if p.CacheFieldName != "" && !token.IsIdentifier(p.CacheFieldName) {
		return &PolicyError{Option: OptionCacheFieldName, Err: fmt.Errorf("%w: %q", ErrInvalidFieldName, p.CacheFieldName)}
	}
	return nil
}

// TTL is CacheTime as a duration.
func (p Policy) TTL() time.Duration {
	return time.Duration(p.CacheTime) * time.Second
}

// FieldName returns CacheFieldName, or "cache" when unset.
func (p Policy) FieldName() string {
	if p.CacheFieldName == "" {
		return DefaultCacheFieldName
	}
	return p.CacheFieldName
}
