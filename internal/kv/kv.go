// Package kv provides the string key-value substrate that workout storage
// and the user directory share. Each Store enforces a byte quota on the sum
// of key and value lengths; a rejected write leaves the previous value intact.
package kv

import (
	"context"

	"github.com/claude/liftlog/internal/models"
)

// DefaultQuota matches the usual per-origin browser storage allowance.
const DefaultQuota = 5 << 20

// Store is a synchronous string key-value store. Implementations are safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

type options struct {
	quota int
}

// Option configures a Store.
type Option func(*options)

// WithQuota sets the byte quota. Zero or negative disables the limit.
func WithQuota(bytes int) Option {
	return func(o *options) { o.quota = bytes }
}

func applyOptions(opts []Option) options {
	o := options{quota: DefaultQuota}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func entrySize(key, value string) int {
	return len(key) + len(value)
}

// checkQuota returns a QuotaExceededError if replacing key's current entry
// (oldSize bytes) with value would push usage past quota.
func checkQuota(quota, used, oldSize int, key, value string) error {
	if quota <= 0 {
		return nil
	}
	need := used - oldSize + entrySize(key, value)
	if need > quota {
		return &models.QuotaExceededError{Key: key, Need: need, Limit: quota}
	}
	return nil
}
