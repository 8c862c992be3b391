package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
)

// ── 活动模块业务错误 ──

var (
	ErrRoundActive     = errors.New("讨论轮次进行中，暂不可修改")
	ErrRoundNotActive  = errors.New("当前没有进行中的讨论轮次")
	ErrJoinCodeExhaust = errors.New("生成加入码失败，请重试")
)

// joinCodeAlphabet 去除易混淆字符（0/O、1/I）
const (
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 6
	joinCodeAttempts = 5
)

// EventService 活动业务接口
type EventService interface {
	Create(ctx context.Context, req *dto.CreateEventRequest, callerID string) (*dto.EventResponse, error)
	GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error)
	List(ctx context.Context, req *dto.EventListRequest, callerID, callerRole string) ([]dto.EventResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateEventRequest, callerID, callerRole string) (*dto.EventResponse, error)
	Delete(ctx context.Context, id, callerID, callerRole string) error
	Join(ctx context.Context, req *dto.JoinEventRequest, callerID string) (*dto.EventResponse, error)
	StartRound(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error)
	EndRound(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error)
}

type eventService struct {
	repo     *repository.Repository
	settings *settingsResolver
	logger   *zap.Logger
}

// NewEventService 创建 EventService 实例
func NewEventService(repo *repository.Repository, settings *settingsResolver, logger *zap.Logger) EventService {
	return &eventService{repo: repo, settings: settings, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *eventService) Create(ctx context.Context, req *dto.CreateEventRequest, callerID string) (*dto.EventResponse, error) {
	code, err := s.generateJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		Name:                    strings.TrimSpace(req.Name),
		Description:             req.Description,
		JoinCode:                code,
		Status:                  model.EventStatusOpen,
		MaxVotesPerTopic:        req.MaxVotesPerTopic,
		MinParticipantsPerTable: req.MinParticipantsPerTable,
		GuestEmailDomain:        strings.ToLower(req.GuestEmailDomain),
		OrganizerID:             callerID,
	}
	event.CreatedBy = &callerID
	event.UpdatedBy = &callerID

	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, err
	}

	// 组织者同时作为参与者（可投票、可被分组）
	if err := s.repo.Event.AddParticipant(ctx, event.EventID, callerID); err != nil {
		s.logger.Error("组织者加入活动失败", zap.String("event_id", event.EventID), zap.Error(err))
		return nil, err
	}

	return s.toEventResponse(ctx, event, true)
}

// ────────────────────── GetByID ──────────────────────

func (s *eventService) GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}
	resp, err := s.toEventResponse(ctx, event, isEventOrganizer(event, callerID, callerRole))
	if err != nil {
		return nil, err
	}

	participants, err := s.repo.Event.ListParticipants(ctx, id)
	if err != nil {
		s.logger.Error("查询活动参与者失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp.ParticipantCount = len(participants)
	return resp, nil
}

// ────────────────────── List ──────────────────────

func (s *eventService) List(ctx context.Context, req *dto.EventListRequest, callerID, callerRole string) ([]dto.EventResponse, int64, error) {
	// 管理员可见全部活动
	userID := callerID
	if callerRole == model.RoleAdmin {
		userID = ""
	}

	events, total, err := s.repo.Event.List(ctx, userID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出活动失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp, err := s.toEventResponse(ctx, &events[i], isEventOrganizer(&events[i], callerID, callerRole))
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *eventService) Update(ctx context.Context, id string, req *dto.UpdateEventRequest, callerID, callerRole string) (*dto.EventResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	if req.Name != nil {
		event.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Status != nil {
		event.Status = *req.Status
		if event.Status == model.EventStatusClosed {
			event.RoundActive = false
		}
	}
	if req.MaxVotesPerTopic != nil {
		event.MaxVotesPerTopic = req.MaxVotesPerTopic
	}
	if req.MinParticipantsPerTable != nil {
		event.MinParticipantsPerTable = req.MinParticipantsPerTable
	}
	if req.GuestEmailDomain != nil {
		event.GuestEmailDomain = strings.ToLower(*req.GuestEmailDomain)
	}

	event.UpdatedBy = &callerID

	if err := s.repo.Event.Update(ctx, event); err != nil {
		s.logger.Error("更新活动失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return s.toEventResponse(ctx, event, true)
}

// ────────────────────── Delete ──────────────────────

func (s *eventService) Delete(ctx context.Context, id, callerID, callerRole string) error {
	event, err := loadEvent(ctx, s.repo, s.logger, id)
	if err != nil {
		return err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return err
	}

	if err := s.repo.Event.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除活动失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Join ──────────────────────

func (s *eventService) Join(ctx context.Context, req *dto.JoinEventRequest, callerID string) (*dto.EventResponse, error) {
	event, err := s.repo.Event.GetByJoinCode(ctx, normalizeJoinCode(req.JoinCode))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidJoinCode
		}
		s.logger.Error("查询活动失败", zap.Error(err))
		return nil, err
	}
	if event.Status == model.EventStatusClosed {
		return nil, ErrEventClosed
	}

	if err := s.repo.Event.AddParticipant(ctx, event.EventID, callerID); err != nil {
		s.logger.Error("加入活动失败", zap.String("event_id", event.EventID), zap.Error(err))
		return nil, err
	}

	return s.toEventResponse(ctx, event, event.OrganizerID == callerID)
}

// ────────────────────── StartRound / EndRound ──────────────────────

// StartRound 开启新一轮讨论：轮次号 +1，话题进入只读
func (s *eventService) StartRound(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}
	if event.Status == model.EventStatusClosed {
		return nil, ErrEventClosed
	}
	if event.RoundActive {
		return nil, ErrRoundActive
	}

	now := time.Now()
	event.RoundActive = true
	event.RoundNumber++
	event.RoundStartedAt = &now
	event.UpdatedBy = &callerID

	if err := s.repo.Event.Update(ctx, event); err != nil {
		s.logger.Error("开启轮次失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toEventResponse(ctx, event, true)
}

// EndRound 结束当前轮次
func (s *eventService) EndRound(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}
	if !event.RoundActive {
		return nil, ErrRoundNotActive
	}

	event.RoundActive = false
	event.UpdatedBy = &callerID

	if err := s.repo.Event.Update(ctx, event); err != nil {
		s.logger.Error("结束轮次失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toEventResponse(ctx, event, true)
}

// ── 内部辅助方法 ──

// generateJoinCode 生成未被占用的加入码
func (s *eventService) generateJoinCode(ctx context.Context) (string, error) {
	alphabetSize := big.NewInt(int64(len(joinCodeAlphabet)))
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		buf := make([]byte, joinCodeLength)
		for i := range buf {
			n, err := rand.Int(rand.Reader, alphabetSize)
			if err != nil {
				return "", err
			}
			buf[i] = joinCodeAlphabet[n.Int64()]
		}
		code := string(buf)

		if _, err := s.repo.Event.GetByJoinCode(ctx, code); errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		} else if err != nil {
			s.logger.Error("查询加入码失败", zap.Error(err))
			return "", err
		}
	}
	return "", ErrJoinCodeExhaust
}

func (s *eventService) toEventResponse(ctx context.Context, e *model.Event, showJoinCode bool) (*dto.EventResponse, error) {
	settings, err := s.settings.forEvent(ctx, e)
	if err != nil {
		return nil, err
	}

	resp := &dto.EventResponse{
		ID:                      e.EventID,
		Name:                    e.Name,
		Description:             e.Description,
		Status:                  e.Status,
		RoundActive:             e.RoundActive,
		RoundNumber:             e.RoundNumber,
		RoundStartedAt:          formatTimePtr(e.RoundStartedAt),
		MaxVotesPerTopic:        settings.MaxVotesPerTopic,
		MinParticipantsPerTable: settings.MinParticipantsPerTable,
		GuestEmailDomain:        settings.GuestEmailDomain,
		OrganizerID:             e.OrganizerID,
		CreatedAt:               formatTime(e.CreatedAt),
	}
	if showJoinCode {
		resp.JoinCode = e.JoinCode
	}
	return resp, nil
}
