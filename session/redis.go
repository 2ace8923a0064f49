package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// KeyPrefix namespaces every key. Defaults to "agentrouter:".
	KeyPrefix string

	// TTL expires idle sessions. Each Append refreshes it. 0 keeps sessions
	// forever.
	TTL time.Duration

	Logger logging.Logger
}

// RedisStore keeps session markers and transcripts in Redis so several router
// instances can share conversations.
//
// Layout:
//
//	<prefix>session:<id>   string, creation timestamp
//	<prefix>history:<id>   list of JSON encoded core.Message
type RedisStore struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{
		KeyPrefix: "agentrouter:",
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &RedisStore{client: client, opts: opts}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) sessionKey(id string) string { return s.opts.KeyPrefix + "session:" + id }
func (s *RedisStore) historyKey(id string) string { return s.opts.KeyPrefix + "history:" + id }

// Create allocates a new session identifier.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()

	ok, err := s.client.SetNX(ctx, s.sessionKey(id), time.Now().UTC().Format(time.RFC3339Nano), s.opts.TTL).Result()
	if err != nil {
		return "", fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("redis create session: id collision for %s", id)
	}

	s.opts.Logger.Debug("session.redis.create", "session.id", id)
	return id, nil
}

// Exists reports whether the session key is present.
func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis session lookup: %w", err)
	}
	return n > 0, nil
}

// Append pushes messages to the transcript in one pipeline, creating the
// session marker if needed and refreshing the TTL.
func (s *RedisStore) Append(ctx context.Context, id string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, len(msgs))
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values[i] = data
	}

	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, s.sessionKey(id), time.Now().UTC().Format(time.RFC3339Nano), s.opts.TTL)
	pipe.RPush(ctx, s.historyKey(id), values...)
	if s.opts.TTL > 0 {
		pipe.Expire(ctx, s.sessionKey(id), s.opts.TTL)
		pipe.Expire(ctx, s.historyKey(id), s.opts.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// Messages returns the transcript in insertion order.
func (s *RedisStore) Messages(ctx context.Context, id string) ([]core.Message, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history: %w", err)
	}

	msgs := make([]core.Message, 0, len(raw))
	for _, r := range raw {
		var m core.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			s.opts.Logger.Warn("session.redis.decode", "session.id", id, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
