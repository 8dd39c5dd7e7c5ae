package gate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

const (
	windowKeyPrefix   = "ratelimit:community:"
	cooldownKeyPrefix = "cooldown:channel:"
)

// RedisLedger keeps the reply history in Redis so that limits survive a
// restart. Each community window is a sorted set scored by send time in
// milliseconds.
type RedisLedger struct {
	client rueidis.Client
}

// NewRedisLedger creates a ledger on top of a rueidis client.
func NewRedisLedger(client rueidis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

// SendsInWindow implements Ledger.
func (l *RedisLedger) SendsInWindow(ctx context.Context, communityID string, now time.Time) (int, error) {
	key := windowKeyPrefix + communityID
	cutoff := strconv.FormatInt(now.Add(-Window).UnixMilli(), 10)

	results := l.client.DoMulti(ctx,
		l.client.B().Zremrangebyscore().Key(key).Min("-inf").Max(cutoff).Build(),
		l.client.B().Zcard().Key(key).Build(),
	)
	if err := results[0].Error(); err != nil {
		return 0, fmt.Errorf("failed to prune send window: %w", err)
	}

	count, err := results[1].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to count send window: %w", err)
	}

	return int(count), nil
}

// LastSend implements Ledger.
func (l *RedisLedger) LastSend(ctx context.Context, channelID string) (time.Time, bool, error) {
	ms, err := l.client.Do(ctx, l.client.B().Get().Key(cooldownKeyPrefix+channelID).Build()).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return time.Time{}, false, nil
		}

		return time.Time{}, false, fmt.Errorf("failed to get last send: %w", err)
	}

	return time.UnixMilli(ms), true, nil
}

// Record implements Ledger.
func (l *RedisLedger) Record(ctx context.Context, communityID, channelID string, at time.Time) error {
	key := windowKeyPrefix + communityID
	ms := at.UnixMilli()
	member := strconv.FormatInt(ms, 10) + ":" + uuid.NewString()

	results := l.client.DoMulti(ctx,
		l.client.B().Zadd().Key(key).ScoreMember().ScoreMember(float64(ms), member).Build(),
		l.client.B().Expire().Key(key).Seconds(int64(Window/time.Second)).Build(),
		l.client.B().Set().Key(cooldownKeyPrefix+channelID).Value(strconv.FormatInt(ms, 10)).Build(),
	)
	for _, result := range results {
		if err := result.Error(); err != nil {
			return fmt.Errorf("failed to record send: %w", err)
		}
	}

	return nil
}
