// Package redis provides a Redis-backed LedgerStore for summarist.
//
// Ledger state is one Redis hash: field "date" holds the calendar day and
// each "usage:<provider>" field holds that provider's count. Add runs as a
// Lua script, so ledgers in different processes can share the hash.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/summarist"
)

const (
	dateField   = "date"
	usagePrefix = "usage:"
)

// Store is a Redis-backed LedgerStore.
type Store struct {
	client goredis.Cmdable
	key    string
}

var _ summarist.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKey sets the Redis key of the ledger hash (default "summarist:quota").
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a new Redis-backed LedgerStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    "summarist:quota",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the ledger hash. A missing key yields an empty state.
func (s *Store) Load(ctx context.Context) (summarist.LedgerState, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return summarist.LedgerState{}, fmt.Errorf("summarist/redis: load: %w", err)
	}

	state := summarist.LedgerState{
		Date:  fields[dateField],
		Usage: make(map[string]int64),
	}
	for f, v := range fields {
		id, ok := strings.CutPrefix(f, usagePrefix)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return summarist.LedgerState{}, fmt.Errorf("summarist/redis: field %s: %w", f, err)
		}
		state.Usage[id] = n
	}
	return state, nil
}

// addScript is a Lua script for an atomic limit-checked increment.
// KEYS[1] = ledger hash key
// ARGV[1] = day
// ARGV[2] = usage field
// ARGV[3] = delta
// ARGV[4] = limit (<= 0 means unlimited)
//
// Returns {used, ok} where ok is 1 when the delta was applied.
var addScript = goredis.NewScript(`
local key = KEYS[1]
local day = ARGV[1]
local field = ARGV[2]
local delta = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])

local stored = redis.call('HGET', key, 'date')
if stored and stored > day then
	local used = tonumber(redis.call('HGET', key, field) or '0')
	if delta > 0 then
		return {used, 0}
	end
	return {used, 1}
end

if not stored or stored < day then
	redis.call('DEL', key)
	redis.call('HSET', key, 'date', day)
end

local used = tonumber(redis.call('HGET', key, field) or '0')
if delta > 0 and limit > 0 and used + delta > limit then
	return {used, 0}
end

used = used + delta
if used < 0 then
	used = 0
end
redis.call('HSET', key, field, used)
return {used, 1}
`)

// Add applies delta to one provider's usage atomically.
func (s *Store) Add(ctx context.Context, day, providerID string, delta, limit int64) (int64, bool, error) {
	res, err := addScript.Run(ctx, s.client, []string{s.key},
		day, usagePrefix+providerID, delta, limit,
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("summarist/redis: add: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("summarist/redis: add: unexpected reply %v", res)
	}
	return res[0], res[1] == 1, nil
}
