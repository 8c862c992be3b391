package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
)

// ── 通用业务错误 ──

var (
	ErrNoPermission        = errors.New("无权操作")
	ErrEventNotFound       = errors.New("活动不存在")
	ErrNotEventParticipant = errors.New("尚未加入该活动")
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// loadEvent 查询活动，不存在时返回 ErrEventNotFound
func loadEvent(ctx context.Context, repo *repository.Repository, logger *zap.Logger, eventID string) (*model.Event, error) {
	event, err := repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	return event, nil
}

// isEventOrganizer 管理员或活动创建者
func isEventOrganizer(event *model.Event, callerID, callerRole string) bool {
	return callerRole == model.RoleAdmin || event.OrganizerID == callerID
}

// requireEventOrganizer 仅管理员或活动组织者可操作
func requireEventOrganizer(event *model.Event, callerID, callerRole string) error {
	if !isEventOrganizer(event, callerID, callerRole) {
		return ErrNoPermission
	}
	return nil
}

// requireEventAccess 组织者或已加入活动的参与者可访问
func requireEventAccess(ctx context.Context, repo *repository.Repository, event *model.Event, callerID, callerRole string) error {
	if isEventOrganizer(event, callerID, callerRole) {
		return nil
	}
	ok, err := repo.Event.IsParticipant(ctx, event.EventID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEventParticipant
	}
	return nil
}

// ── 模型 → 分组引擎输入 ──

// toGroupingTopic 转换话题（需预加载 Votes.User）
func toGroupingTopic(t *model.Topic) grouping.Topic {
	return grouping.Topic{
		ID:                 t.TopicID,
		Title:              t.Title,
		Voters:             t.VoterEmails(model.VoteKindLegacy),
		FirstChoiceVoters:  t.VoterEmails(model.VoteKindFirst),
		SecondChoiceVoters: t.VoterEmails(model.VoteKindSecond),
		SelectedForRound:   t.SelectedForRound,
	}
}

func toGroupingRoom(r *model.Room) grouping.Room {
	return grouping.Room{
		ID:        r.RoomID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Location:  r.Location,
		Available: r.IsAvailable,
	}
}

// buildDirectory 以投票人 email（小写）为键构建用户目录
func buildDirectory(ctx context.Context, repo *repository.Repository, emails []string) (map[string]grouping.Participant, error) {
	directory := make(map[string]grouping.Participant, len(emails))
	if len(emails) == 0 {
		return directory, nil
	}
	users, err := repo.User.ListByEmails(ctx, emails)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		directory[strings.ToLower(u.Email)] = grouping.Participant{
			Name:  u.Name,
			Email: u.Email,
			Role:  u.Role,
		}
	}
	return directory, nil
}
