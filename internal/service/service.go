package service

import (
	"go.uber.org/zap"

	"github.com/dmgrok/unconference/config"
	"github.com/dmgrok/unconference/internal/repository"
	"github.com/dmgrok/unconference/pkg/jwt"
	"github.com/dmgrok/unconference/pkg/metrics"
	"github.com/dmgrok/unconference/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Event        EventService
	Topic        TopicService
	Room         RoomService
	Group        GroupService
	Export       ExportService
	SystemConfig SystemConfigService
}

// NewService 创建 Service 聚合
// rdb 可为 nil（Redis 不可用时：不做 Token 黑名单，分组锁降级为进程内锁）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	settings := newSettingsResolver(&cfg.Grouping, repo, logger)
	locker := NewRoundLocker(rdb, cfg.Grouping.RoundLockTTL, logger)

	return &Service{
		Auth:         NewAuthService(repo, jwtMgr, rdb, settings, logger),
		User:         NewUserService(repo, logger),
		Event:        NewEventService(repo, settings, logger),
		Topic:        NewTopicService(repo, settings, logger),
		Room:         NewRoomService(repo, logger),
		Group:        NewGroupService(repo, settings, locker, m, logger),
		Export:       NewExportService(repo, logger),
		SystemConfig: NewSystemConfigService(&cfg.Grouping, repo, logger),
	}
}
