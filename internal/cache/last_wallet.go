package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

const (
	lastWalletPrefix = "moff-connect:last-wallet:"
	// 30天未再次连接则遗忘
	lastWalletTTL = 30 * 24 * time.Hour
)

// LastWalletStore remembers the id of the connector a session last connected with.
type LastWalletStore struct {
	client redis.UniversalClient
}

func NewLastWalletStore(client redis.UniversalClient) *LastWalletStore {
	return &LastWalletStore{client: client}
}

func lastWalletKey(session string) string {
	return fmt.Sprintf("%s%s", lastWalletPrefix, session)
}

// Load returns "" when the session has no last wallet.
func (s *LastWalletStore) Load(ctx context.Context, session string) (string, error) {
	id, err := s.client.Get(ctx, lastWalletKey(session)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.WrapAndReport(err, "load last wallet")
	}
	return id, nil
}

func (s *LastWalletStore) Save(ctx context.Context, session, connectorID string) error {
	err := s.client.Set(ctx, lastWalletKey(session), connectorID, lastWalletTTL).Err()
	return errors.WrapAndReport(err, "save last wallet")
}

func (s *LastWalletStore) Clear(ctx context.Context, session string) error {
	err := s.client.Del(ctx, lastWalletKey(session)).Err()
	return errors.WrapAndReport(err, "clear last wallet")
}

// ClearAll forgets the last wallet of every session.
func (s *LastWalletStore) ClearAll(ctx context.Context) error {
	var (
		cursor uint64
		match        = lastWalletPrefix + "*"
		count  int64 = 200
	)
	log.Debugf("deleting cache pattern %v", match)
	for {
		keys, c, err := s.client.Scan(ctx, cursor, match, count).Result()
		if err != nil {
			return errors.WrapAndReport(err, "scan caches")
		}
		cursor = c
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return errors.WrapAndReport(err, "delete caches")
			}
		}
		if c == 0 {
			return nil
		}
	}
}
