package signaling

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Envelope is a message held for a peer that was not connected when it
// was sent.
type Envelope struct {
	From string `json:"from"`
	Data []byte `json:"data"`
}

// Mailbox stores undelivered messages per room until the other peer joins.
type Mailbox interface {
	// Put appends a message to the room's queue.
	Put(ctx context.Context, room string, e Envelope) error

	// Drain removes and returns all queued messages for the room in the
	// order they were put.
	Drain(ctx context.Context, room string) ([]Envelope, error)

	Close() error
}

// Default mailbox limits.
const (
	DefaultMailboxTTL   = 10 * time.Minute
	DefaultMailboxLimit = 32
)

// --- In-memory mailbox ---

type queued struct {
	env     Envelope
	expires time.Time
}

// MemoryMailbox keeps queued messages in process memory.
type MemoryMailbox struct {
	mu    sync.Mutex
	rooms map[string][]queued
	ttl   time.Duration
	limit int
}

// NewMemoryMailbox creates an in-memory mailbox. Messages older than ttl are
// discarded and each room keeps at most limit messages, dropping the oldest.
func NewMemoryMailbox(ttl time.Duration, limit int) *MemoryMailbox {
	if ttl <= 0 {
		ttl = DefaultMailboxTTL
	}
	if limit <= 0 {
		limit = DefaultMailboxLimit
	}
	return &MemoryMailbox{
		rooms: make(map[string][]queued),
		ttl:   ttl,
		limit: limit,
	}
}

// Put implements Mailbox.
func (m *MemoryMailbox) Put(_ context.Context, room string, e Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := append(m.rooms[room], queued{env: e, expires: time.Now().Add(m.ttl)})
	if len(q) > m.limit {
		q = q[len(q)-m.limit:]
	}
	m.rooms[room] = q
	return nil
}

// Drain implements Mailbox.
func (m *MemoryMailbox) Drain(_ context.Context, room string) ([]Envelope, error) {
	m.mu.Lock()
	q := m.rooms[room]
	delete(m.rooms, room)
	m.mu.Unlock()

	now := time.Now()
	out := make([]Envelope, 0, len(q))
	for _, item := range q {
		if now.Before(item.expires) {
			out = append(out, item.env)
		}
	}
	return out, nil
}

// Close implements Mailbox.
func (m *MemoryMailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.rooms)
	return nil
}

// --- Redis mailbox ---

// RedisMailbox keeps queued messages in a Redis list per room so that they
// survive a relay restart and can be shared by several relay instances.
type RedisMailbox struct {
	rdb    *redis.Client
	ttl    time.Duration
	limit  int64
	prefix string
}

// RedisMailboxConfig configures a RedisMailbox.
type RedisMailboxConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Limit    int
	Prefix   string
}

// NewRedisMailbox connects to Redis.
func NewRedisMailbox(cfg RedisMailboxConfig) *RedisMailbox {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisMailboxFromClient(rdb, cfg)
}

// NewRedisMailboxFromClient wraps an existing client. Addr, Password and DB
// in cfg are ignored.
func NewRedisMailboxFromClient(rdb *redis.Client, cfg RedisMailboxConfig) *RedisMailbox {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMailboxTTL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultMailboxLimit
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "quantum-call:mailbox:"
	}
	return &RedisMailbox{
		rdb:    rdb,
		ttl:    cfg.TTL,
		limit:  int64(cfg.Limit),
		prefix: cfg.Prefix,
	}
}

func (m *RedisMailbox) key(room string) string {
	return m.prefix + room
}

// Put implements Mailbox. The list is trimmed to the newest limit entries
// and its TTL is refreshed.
func (m *RedisMailbox) Put(ctx context.Context, room string, e Envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := m.key(room)
	_, err = m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -m.limit, -1)
		pipe.Expire(ctx, key, m.ttl)
		return nil
	})
	return err
}

// Drain implements Mailbox.
func (m *RedisMailbox) Drain(ctx context.Context, room string) ([]Envelope, error) {
	key := m.key(room)

	var items *redis.StringSliceCmd
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	vals, err := items.Result()
	if err != nil {
		return nil, err
	}

	out := make([]Envelope, 0, len(vals))
	for _, v := range vals {
		var e Envelope
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Ping checks the Redis connection. It matches metrics.CheckFunc.
func (m *RedisMailbox) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Close implements Mailbox.
func (m *RedisMailbox) Close() error {
	return m.rdb.Close()
}
