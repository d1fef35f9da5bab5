package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"storefront-be/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultViewWindow = 30 * time.Minute

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// ViewDedupeSink drops repeated share views of the same viewer inside a
// window before handing the rest to next. Clones always pass through.
// Redis failures fail open.
type ViewDedupeSink struct {
	next   Sink
	redis  setNXer
	window time.Duration
	prefix string
}

func NewViewDedupeSink(next Sink, rdb setNXer, window time.Duration) *ViewDedupeSink {
	if window <= 0 {
		window = defaultViewWindow
	}
	return &ViewDedupeSink{next: next, redis: rdb, window: window, prefix: "share_view:"}
}

func (s *ViewDedupeSink) Deliver(ctx context.Context, env Envelope) error {
	view, ok := env.Payload.(ShareView)
	if env.Topic != TopicShareViews || !ok || view.Cloned {
		return s.next.Deliver(ctx, env)
	}

	fresh, err := s.redis.SetNX(ctx, s.key(view), 1, s.window).Result()
	if err != nil {
		logger.FromCtx(ctx).Warn("share view dedupe unavailable", zap.Error(err))
		return s.next.Deliver(ctx, env)
	}
	if !fresh {
		return nil
	}
	return s.next.Deliver(ctx, env)
}

func (s *ViewDedupeSink) key(v ShareView) string {
	viewer := v.ViewerSessionID
	if viewer == "" {
		viewer = v.IP + "|" + v.UserAgent
	}
	sum := sha256.Sum256([]byte(viewer))
	return s.prefix + v.ShareToken + ":" + hex.EncodeToString(sum[:8])
}

type RedisOption func(*redis.Options)

func WithRedisPassword(password string) RedisOption {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithRedisDB(db int) RedisOption {
	return func(o *redis.Options) {
		o.DB = db
	}
}

func NewRedisClient(address string, options ...RedisOption) *redis.Client {
	opts := &redis.Options{
		Addr: address,
	}
	for _, option := range options {
		option(opts)
	}
	return redis.NewClient(opts)
}
