package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/config"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
)

// groupSettings 活动生效的分组参数
type groupSettings struct {
	MaxVotesPerTopic        int
	MinParticipantsPerTable int
	GuestEmailDomain        string
}

// settingsResolver 按 活动设置 → 系统配置 → 配置文件 的顺序确定分组参数
type settingsResolver struct {
	defaults *config.GroupingConfig
	repo     *repository.Repository
	logger   *zap.Logger
}

func newSettingsResolver(defaults *config.GroupingConfig, repo *repository.Repository, logger *zap.Logger) *settingsResolver {
	return &settingsResolver{defaults: defaults, repo: repo, logger: logger}
}

// system 系统级默认值；system_config 行缺失时使用配置文件
func (r *settingsResolver) system(ctx context.Context) (groupSettings, error) {
	out := groupSettings{
		MaxVotesPerTopic:        r.defaults.MaxVotesPerTopic,
		MinParticipantsPerTable: r.defaults.MinParticipantsPerTable,
		GuestEmailDomain:        r.defaults.GuestEmailDomain,
	}

	sc, err := r.repo.SystemConfig.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return out, nil
		}
		r.logger.Error("查询系统配置失败", zap.Error(err))
		return out, err
	}

	if sc.MaxVotesPerTopic > 0 {
		out.MaxVotesPerTopic = sc.MaxVotesPerTopic
	}
	if sc.MinParticipantsPerTable > 0 {
		out.MinParticipantsPerTable = sc.MinParticipantsPerTable
	}
	if sc.GuestEmailDomain != "" {
		out.GuestEmailDomain = sc.GuestEmailDomain
	}
	return out, nil
}

// forEvent 活动生效参数
func (r *settingsResolver) forEvent(ctx context.Context, event *model.Event) (groupSettings, error) {
	out, err := r.system(ctx)
	if err != nil {
		return out, err
	}
	if event.MaxVotesPerTopic != nil {
		out.MaxVotesPerTopic = *event.MaxVotesPerTopic
	}
	if event.MinParticipantsPerTable != nil {
		out.MinParticipantsPerTable = *event.MinParticipantsPerTable
	}
	if event.GuestEmailDomain != "" {
		out.GuestEmailDomain = event.GuestEmailDomain
	}
	return out, nil
}
