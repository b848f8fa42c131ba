// Package redis provides an adapter to redis client
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flashbots/dex-arb-bot/arbitrage"
	"github.com/redis/go-redis/v9"
)

// ExecutionFeed publishes execution results on a pub/sub channel and keeps short-lived per-pair
// success and failure counters.
type ExecutionFeed struct {
	client         *redis.Client
	channel        string
	expireDuration time.Duration
	keyPrefix      string
}

func NewExecutionFeed(client *redis.Client, channel string, expireDuration time.Duration, keyPrefix string) *ExecutionFeed {
	return &ExecutionFeed{
		client:         client,
		channel:        channel,
		expireDuration: expireDuration,
		keyPrefix:      keyPrefix,
	}
}

func (f *ExecutionFeed) RecordExecution(ctx context.Context, result *arbitrage.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return err
	}

	key := f.counterKey(result.Pair, result.Success)
	if err := f.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	// ignore expiry error as it is not critical
	_ = f.client.Expire(ctx, key, f.expireDuration).Err()
	return nil
}

// executionCount returns the number of recorded executions for pair with the given outcome.
func (f *ExecutionFeed) executionCount(ctx context.Context, pair string, success bool) (uint64, error) {
	n, err := f.client.Get(ctx, f.counterKey(pair, success)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return uint64(n), err
}

func (f *ExecutionFeed) counterKey(pair string, success bool) string {
	outcome := "failed"
	if success {
		outcome = "executed"
	}
	return f.keyPrefix + pair + ":" + outcome
}
