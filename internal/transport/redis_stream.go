package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/craftbridge/catalog-backend/internal/platform/logger"
)

const (
	// A dedup claim is written empty and filled with the message id
	// only after XAdd succeeds. A duplicate landing inside that gap
	// polls for the id instead of reporting an empty one.
	dedupPollAttempts = 8
	dedupPollInterval = 25 * time.Millisecond
)

// redisCommands is the slice of go-redis the transport touches, split
// out so tests can stand in for the server. *goredis.Client satisfies
// it.
type redisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// redisStreamTransport publishes onto one Redis stream per group key
// (one per tenant in practice), which gives per-group ordering for a
// single consumer while leaving groups independent. The dedup window
// is a SET NX whose value is the first message id, so duplicates can
// report the original id back to the caller.
type redisStreamTransport struct {
	log          *logger.Logger
	rdb          redisCommands
	streamPrefix string
	dedupWindow  time.Duration
}

func NewRedisStreamTransport(log *logger.Logger, rdb *goredis.Client, streamPrefix string, dedupWindow time.Duration) (Transport, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	streamPrefix = strings.TrimSpace(streamPrefix)
	if streamPrefix == "" {
		return nil, fmt.Errorf("stream prefix required")
	}
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Minute
	}
	return &redisStreamTransport{
		log:          log.With("service", "RedisStreamTransport"),
		rdb:          rdb,
		streamPrefix: streamPrefix,
		dedupWindow:  dedupWindow,
	}, nil
}

func (t *redisStreamTransport) Send(ctx context.Context, env Envelope) (Result, error) {
	if len(env.Body) == 0 {
		return Result{}, fmt.Errorf("empty message body")
	}

	stream := t.streamPrefix
	if env.GroupKey != "" {
		stream = t.streamPrefix + ":" + env.GroupKey
	}

	var dedupKey string
	if env.DedupKey != "" {
		dedupKey = t.streamPrefix + ":dedup:" + env.DedupKey
		claimed, err := t.rdb.SetNX(ctx, dedupKey, "", t.dedupWindow).Result()
		if err != nil {
			return Result{}, fmt.Errorf("dedup claim: %w", err)
		}
		if !claimed {
			originalID, err := t.originalMessageID(ctx, dedupKey)
			if err != nil {
				return Result{}, err
			}
			t.log.Debug("duplicate publish collapsed",
				"stream", stream,
				"dedup_key", env.DedupKey,
				"original_message_id", originalID,
			)
			return Result{MessageID: originalID, Duplicate: true}, nil
		}
	}

	values := make(map[string]interface{}, len(env.Attributes)+2)
	for k, v := range env.Attributes {
		values["attr:"+k] = v
	}
	values["body"] = string(env.Body)
	if env.DedupKey != "" {
		// Carried on the message too, so a consumer behind a window
		// longer than ours can run its own dedup.
		values["dedup_key"] = env.DedupKey
	}

	id, err := t.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		if dedupKey != "" {
			// Free the claim so a retry is not swallowed as a duplicate
			// of a message that never made it onto the stream.
			_ = t.rdb.Del(ctx, dedupKey).Err()
		}
		return Result{}, fmt.Errorf("xadd to %q: %w", stream, err)
	}

	if dedupKey != "" {
		if err := t.rdb.Set(ctx, dedupKey, id, goredis.KeepTTL).Err(); err != nil {
			t.log.Warn("failed to record message id on dedup key", "dedup_key", env.DedupKey, "error", err)
		}
	}

	return Result{MessageID: id}, nil
}

// originalMessageID reads the winner's message id off a held dedup
// claim, polling across the window between the winner's SetNX and its
// post-XAdd Set. An id that never shows up, or a claim the winner
// freed after a failed XAdd, comes back empty.
func (t *redisStreamTransport) originalMessageID(ctx context.Context, dedupKey string) (string, error) {
	for attempt := 0; ; attempt++ {
		id, err := t.rdb.Get(ctx, dedupKey).Result()
		if err == goredis.Nil {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("dedup lookup: %w", err)
		}
		if id != "" || attempt >= dedupPollAttempts {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(dedupPollInterval):
		}
	}
}
