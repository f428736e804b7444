package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/trigger"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTriggerKey = "reminders:triggers"

// Pops up to ARGV[2] members with score <= ARGV[1] in one step so two pollers
// never receive the same id.
var popDueScript = goredis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
if #ids > 0 then
  redis.call("ZREM", KEYS[1], unpack(ids))
end
return ids
`)

var _ trigger.Store = (*RedisTriggerStore)(nil)

// RedisTriggerStore keeps armed triggers in a sorted set scored by due time in
// unix milliseconds.
type RedisTriggerStore struct {
	client *goredis.Client
	key    string
	script *goredis.Script
}

func NewRedisTriggerStore(client *goredis.Client, key string) (*RedisTriggerStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(key) == "" {
		key = defaultTriggerKey
	}

	return &RedisTriggerStore{
		client: client,
		key:    key,
		script: popDueScript,
	}, nil
}

func (s *RedisTriggerStore) Arm(ctx context.Context, notificationID string, at time.Time) error {
	if strings.TrimSpace(notificationID) == "" {
		return fmt.Errorf("notification id is required")
	}

	err := s.client.ZAdd(ctx, s.key, goredis.Z{
		Score:  float64(at.UTC().UnixMilli()),
		Member: notificationID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to arm trigger: %w", err)
	}
	return nil
}

func (s *RedisTriggerStore) Disarm(ctx context.Context, notificationID string) error {
	if err := s.client.ZRem(ctx, s.key, notificationID).Err(); err != nil {
		return fmt.Errorf("failed to disarm trigger: %w", err)
	}
	return nil
}

func (s *RedisTriggerStore) IsArmed(ctx context.Context, notificationID string) (bool, error) {
	err := s.client.ZScore(ctx, s.key, notificationID).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read trigger: %w", err)
	}
	return true, nil
}

func (s *RedisTriggerStore) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := s.script.Run(ctx, s.client, []string{s.key}, now.UTC().UnixMilli(), limit).StringSlice()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop due triggers: %w", err)
	}
	return ids, nil
}
