package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
	"github.com/dmgrok/unconference/pkg/redis"
)

// RoundLocker 活动级分组互斥：同一活动同一时刻至多一个分组/重新平衡操作
type RoundLocker interface {
	// Acquire 获取锁；已被占用返回 pkgerrors.ErrRoundBusy。release 可安全重复调用
	Acquire(ctx context.Context, eventID string) (release func(), err error)
}

type roundLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu   sync.Mutex
	held map[string]bool
}

// NewRoundLocker 创建分组锁
// 优先使用 Redis（多实例共享）；rdb 为 nil 或 Redis 出错时使用进程内锁
func NewRoundLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) RoundLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &roundLocker{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
		held:   make(map[string]bool),
	}
}

func (l *roundLocker) Acquire(ctx context.Context, eventID string) (func(), error) {
	key := "round:" + eventID

	if l.rdb != nil {
		token := uuid.NewString()
		ok, err := l.rdb.AcquireLock(ctx, key, token, l.ttl)
		if err == nil {
			if !ok {
				return nil, pkgerrors.ErrRoundBusy
			}
			var once sync.Once
			return func() {
				once.Do(func() { l.releaseRemote(key, token) })
			}, nil
		}
		l.logger.Warn("Redis 分组锁不可用，降级为进程内锁", zap.String("event_id", eventID), zap.Error(err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, pkgerrors.ErrRoundBusy
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// releaseRemote 使用独立 context：请求已取消时仍需释放锁
func (l *roundLocker) releaseRemote(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := l.rdb.ReleaseLock(ctx, key, token); err != nil && !errors.Is(err, redis.ErrLockNotHeld) {
		l.logger.Warn("释放分组锁失败", zap.String("key", key), zap.Error(err))
	}
}
