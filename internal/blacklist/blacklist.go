// Package blacklist keeps the identifiers of tokens revoked before their
// natural expiry.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("blacklist unavailable")

// minEntryTTL keeps an entry alive long enough to settle a concurrent claim
// on a token that is just about to expire.
const minEntryTTL = time.Second

type Blacklist interface {
	// Add stores tokenID until the given instant. It reports false when the
	// entry already existed, so two callers never both observe true.
	Add(ctx context.Context, tokenID string, until time.Time) (bool, error)
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

type RedisBlacklist struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisBlacklist(client redis.UniversalClient, prefix string) *RedisBlacklist {
	return &RedisBlacklist{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (b *RedisBlacklist) key(tokenID string) string {
	return b.prefix + ":" + tokenID
}

func (b *RedisBlacklist) Add(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	const op = "blacklist.Add"

	ttl := until.Sub(b.now())
	if ttl < minEntryTTL {
		ttl = minEntryTTL
	}

	added, err := b.client.SetNX(ctx, b.key(tokenID), until.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return added, nil
}

func (b *RedisBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	const op = "blacklist.IsBlacklisted"

	n, err := b.client.Exists(ctx, b.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return n > 0, nil
}
