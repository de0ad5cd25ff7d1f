// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package coordinator

import (
	"context"
	"time"
)

// RedisClient is the narrow subset of coordination-service commands the
// scheduler needs: atomic set-if-absent with TTL, per-field hash
// updates, and key deletion (spec.md §4.1 "Persistent state"). Kept as
// an interface so the scheduler is unit-testable against an in-memory
// fake instead of a live Redis instance.
type RedisClient interface {
	// HSet sets one field of a hash.
	HSet(ctx context.Context, key, field, value string) error
	// HGetAll returns every field/value pair of a hash.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HDel deletes one field of a hash.
	HDel(ctx context.Context, key, field string) error
	// HLen reports how many fields a hash has.
	HLen(ctx context.Context, key string) (int, error)
	// SetNX sets key to value with ttl only if key is currently absent,
	// reporting whether the set happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Expire refreshes a key's TTL. Used for lease renewal.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Get returns a key's value, and false if it doesn't exist.
	Get(ctx context.Context, key string) (string, bool, error)
	// Del deletes one or more keys outright.
	Del(ctx context.Context, keys ...string) error
	// Keys lists keys matching a glob pattern, used by
	// ActiveLockWorkerIDs (the status subcommand) to enumerate active locks.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
