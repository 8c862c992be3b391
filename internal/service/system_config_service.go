package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/config"
	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
)

// SystemConfigService 系统配置业务接口（全局分组默认值）
type SystemConfigService interface {
	Get(ctx context.Context) (*dto.SystemConfigResponse, error)
	Update(ctx context.Context, req *dto.UpdateSystemConfigRequest, callerID string) (*dto.SystemConfigResponse, error)
}

type systemConfigService struct {
	defaults *config.GroupingConfig
	repo     *repository.Repository
	logger   *zap.Logger
}

// NewSystemConfigService 创建 SystemConfigService 实例
func NewSystemConfigService(defaults *config.GroupingConfig, repo *repository.Repository, logger *zap.Logger) SystemConfigService {
	return &systemConfigService{defaults: defaults, repo: repo, logger: logger}
}

// ────────────────────── Get ──────────────────────

func (s *systemConfigService) Get(ctx context.Context) (*dto.SystemConfigResponse, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return toSystemConfigResponse(cfg), nil
}

// ────────────────────── Update ──────────────────────

func (s *systemConfigService) Update(ctx context.Context, req *dto.UpdateSystemConfigRequest, callerID string) (*dto.SystemConfigResponse, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if req.MaxVotesPerTopic != nil {
		cfg.MaxVotesPerTopic = *req.MaxVotesPerTopic
	}
	if req.MinParticipantsPerTable != nil {
		cfg.MinParticipantsPerTable = *req.MinParticipantsPerTable
	}
	if req.GuestEmailDomain != nil {
		cfg.GuestEmailDomain = strings.ToLower(*req.GuestEmailDomain)
	}

	cfg.UpdatedBy = &callerID

	if err := s.repo.SystemConfig.Update(ctx, cfg); err != nil {
		s.logger.Error("更新系统配置失败", zap.Error(err))
		return nil, err
	}
	return toSystemConfigResponse(cfg), nil
}

// load 读取系统配置；未初始化时以配置文件默认值构造（Update 时写入）
func (s *systemConfigService) load(ctx context.Context) (*model.SystemConfig, error) {
	cfg, err := s.repo.SystemConfig.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}
	return &model.SystemConfig{
		Singleton:               true,
		MaxVotesPerTopic:        s.defaults.MaxVotesPerTopic,
		MinParticipantsPerTable: s.defaults.MinParticipantsPerTable,
		GuestEmailDomain:        s.defaults.GuestEmailDomain,
	}, nil
}

func toSystemConfigResponse(cfg *model.SystemConfig) *dto.SystemConfigResponse {
	resp := &dto.SystemConfigResponse{
		MaxVotesPerTopic:        cfg.MaxVotesPerTopic,
		MinParticipantsPerTable: cfg.MinParticipantsPerTable,
		GuestEmailDomain:        cfg.GuestEmailDomain,
	}
	if !cfg.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(cfg.UpdatedAt)
	}
	return resp
}
