package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Subicson333/verify/internal/domain"
)

const (
	redisCaseKeyPrefix = "verify:case:"
	redisCaseIndexKey  = "verify:cases"
)

// RedisStore keeps each case as a JSON string and tracks ids in a sorted set
// scored by creation time. Writes are optimistic transactions on the case key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}))
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, caseID string) (domain.Case, error) {
	raw, err := s.client.Get(ctx, redisCaseKey(caseID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Case{}, domain.ErrCaseNotFound
		}
		return domain.Case{}, err
	}
	return decodeCase(raw)
}

// Put watches the case key so the write only lands if nobody else stored the
// case between the version check and EXEC.
func (s *RedisStore) Put(ctx context.Context, c domain.Case) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode case %s: %w", c.CaseID, err)
	}
	key := redisCaseKey(c.CaseID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if c.Version != stored+1 {
			return fmt.Errorf("%w: %s at version %d, stored %d", domain.ErrVersionConflict, c.CaseID, c.Version, stored)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.ZAddNX(ctx, redisCaseIndexKey, redis.Z{
				Score:  float64(c.CreatedAt.UnixNano()),
				Member: c.CaseID,
			})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", domain.ErrVersionConflict, c.CaseID)
	}
	return err
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return 0, fmt.Errorf("decode case version: %w", err)
	}
	return head.Version, nil
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Case, error) {
	ids, err := s.client.ZRange(ctx, redisCaseIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Case{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisCaseKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	cases := make([]domain.Case, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// indexed id whose document is gone
			continue
		}
		c, err := decodeCase([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", ids[i], err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func redisCaseKey(caseID string) string {
	return redisCaseKeyPrefix + caseID
}
