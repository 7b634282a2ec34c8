package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection used for the key cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	// KeyTTL bounds how long a stored key lives. Zero keeps keys forever.
	KeyTTL time.Duration
}

// RedisClient wraps go-redis to satisfy push.KeyCache.
// It tracks reachability from the outcome of every dial and command so that
// Connected never has to block on the network.
type RedisClient struct {
	rdb       *redis.Client
	ttl       time.Duration
	connected atomic.Bool
	logger    *slog.Logger
}

// NewRedisClient creates the client and probes the server once. An unreachable server is
// not fatal: the client starts disconnected and go-redis keeps redialing on demand.
func NewRedisClient(opts Options, logger *slog.Logger) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	c := &RedisClient{
		rdb:    rdb,
		ttl:    opts.KeyTTL,
		logger: logger.With("component", "RedisKeyCache", "addr", opts.Addr),
	}
	rdb.AddHook(connectionHook{client: c})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis not reachable at startup, continuing without cache", "err", err)
	}
	return c
}

// Get returns the stored value; redis.Nil is reported as a miss rather than an error.
func (c *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key, replacing any previous value.
func (c *RedisClient) Set(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Connected reports the last observed reachability of the server.
func (c *RedisClient) Connected() bool {
	return c.connected.Load()
}

// Monitor pings the server every interval until ctx is done, keeping Connected current
// while the relay is idle.
func (c *RedisClient) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			_ = c.rdb.Ping(pingCtx).Err()
			cancel()
		}
	}
}

func (c *RedisClient) Close() error {
	c.connected.Store(false)
	return c.rdb.Close()
}

// observe folds the outcome of a dial or command into the connection flag.
func (c *RedisClient) observe(err error) {
	switch {
	case err == nil, errors.Is(err, redis.Nil):
		c.setConnected(true, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The caller gave up; says nothing about the server.
	default:
		var serverErr redis.Error
		if errors.As(err, &serverErr) {
			// The server answered, just not with what we wanted.
			c.setConnected(true, nil)
			return
		}
		c.setConnected(false, err)
	}
}

func (c *RedisClient) setConnected(up bool, cause error) {
	if c.connected.Swap(up) == up {
		return
	}
	if up {
		c.logger.Info("Redis connection established")
	} else {
		c.logger.Error("Redis connection lost", "err", cause)
	}
}

type connectionHook struct {
	client *RedisClient
}

func (h connectionHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		h.client.observe(err)
		return conn, err
	}
}

func (h connectionHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.client.observe(err)
		return err
	}
}

func (h connectionHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.client.observe(err)
		return err
	}
}
