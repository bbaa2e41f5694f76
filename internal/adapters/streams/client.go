package streams

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/config"
)

// Client implements task.EventLog on Redis Streams. The connection pool is
// shared by every publisher and consumer in the process; all operations are
// connection-safe.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis streams client from the streams configuration.
func NewClient(cfg *config.Streams) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	timeout := time.Duration(cfg.SocketTimeoutSec) * time.Second
	opts.PoolSize = cfg.MaxConnections
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	return &Client{rdb: redis.NewClient(opts)}, nil
}

// EnsureGroup creates the consumer group, creating the stream alongside it if
// needed. A group that already exists is not an error.
func (c *Client) EnsureGroup(ctx context.Context, stream, group, startID string) error {
	if startID == "" {
		startID = "$"
	}
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, startID).Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// Append adds an entry to the stream and returns the assigned id. A positive
// maxLen trims the stream, approximately when approx is set.
func (c *Client) Append(ctx context.Context, stream string, fields map[string]string, maxLen int64, approx bool) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = approx
	}

	id, err := c.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to stream %s: %w", stream, err)
	}
	return id, nil
}

// ReadGroup fetches up to count new entries for the consumer, blocking up to
// block when the stream is idle. An empty result is not an error.
func (c *Client) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]task.LogEntry, error) {
	result, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read group %s on %s: %w", group, stream, err)
	}

	var entries []task.LogEntry
	for _, s := range result {
		for _, msg := range s.Messages {
			entries = append(entries, toLogEntry(msg))
		}
	}
	return entries, nil
}

// ClaimPending transfers ownership of entries idle in other members' pending
// sets for at least minIdle, scanning from the start of the pending list.
func (c *Client) ClaimPending(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]task.LogEntry, error) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending entries on %s: %w", stream, err)
	}

	entries := make([]task.LogEntry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, toLogEntry(msg))
	}
	return entries, nil
}

// Ack removes entries from the group's pending set.
func (c *Client) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack entries on %s: %w", stream, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func toLogEntry(msg redis.XMessage) task.LogEntry {
	fields := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		if s, ok := v.(string); ok {
			fields[k] = s
		} else {
			fields[k] = fmt.Sprintf("%v", v)
		}
	}
	return task.LogEntry{ID: msg.ID, Fields: fields}
}
