package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
)

// ── 话题模块业务错误 ──

var (
	ErrTopicNotFound       = errors.New("话题不存在")
	ErrAlreadyVoted        = errors.New("已为该话题投票")
	ErrVoteNotFound        = errors.New("尚未为该话题投票")
	ErrPreferenceEmpty     = errors.New("至少需要指定一个志愿")
	ErrPreferenceDuplicate = errors.New("第一志愿与第二志愿不能相同")
)

// TopicService 话题业务接口
type TopicService interface {
	Create(ctx context.Context, eventID string, req *dto.CreateTopicRequest, callerID, callerRole string) (*dto.TopicResponse, error)
	GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.TopicResponse, error)
	List(ctx context.Context, eventID, callerID, callerRole string) ([]dto.TopicResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateTopicRequest, callerID, callerRole string) (*dto.TopicResponse, error)
	Delete(ctx context.Context, id, callerID, callerRole string) error
	Vote(ctx context.Context, id, callerID, callerRole string) (*dto.TopicResponse, error)
	Unvote(ctx context.Context, id, callerID, callerRole string) error
	SetPreferences(ctx context.Context, eventID string, req *dto.SetPreferencesRequest, callerID, callerRole string) (*dto.MyPreferencesResponse, error)
	MyPreferences(ctx context.Context, eventID, callerID, callerRole string) (*dto.MyPreferencesResponse, error)
	ClearVotes(ctx context.Context, eventID, callerID, callerRole string) error
	Select(ctx context.Context, id string, req *dto.SelectTopicRequest, callerID, callerRole string) (*dto.TopicResponse, error)
}

type topicService struct {
	repo     *repository.Repository
	settings *settingsResolver
	logger   *zap.Logger
}

// NewTopicService 创建 TopicService 实例
func NewTopicService(repo *repository.Repository, settings *settingsResolver, logger *zap.Logger) TopicService {
	return &topicService{repo: repo, settings: settings, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *topicService) Create(ctx context.Context, eventID string, req *dto.CreateTopicRequest, callerID, callerRole string) (*dto.TopicResponse, error) {
	event, err := s.writableEvent(ctx, eventID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	topic := &model.Topic{
		EventID:     event.EventID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		AuthorID:    callerID,
	}
	topic.CreatedBy = &callerID
	topic.UpdatedBy = &callerID

	if err := s.repo.Topic.Create(ctx, topic); err != nil {
		s.logger.Error("创建话题失败", zap.Error(err))
		return nil, err
	}

	return toTopicResponse(topic), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *topicService) GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.TopicResponse, error) {
	topic, _, err := s.loadWithEvent(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}
	return toTopicResponse(topic), nil
}

// ────────────────────── List ──────────────────────

// List 按票数降序（同票保持提交顺序）
func (s *topicService) List(ctx context.Context, eventID, callerID, callerRole string) ([]dto.TopicResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}

	topics, err := s.repo.Topic.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("列出话题失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.TopicResponse, 0, len(topics))
	for i := range topics {
		result = append(result, *toTopicResponse(&topics[i]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Votes > result[j].Votes
	})
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *topicService) Update(ctx context.Context, id string, req *dto.UpdateTopicRequest, callerID, callerRole string) (*dto.TopicResponse, error) {
	topic, event, err := s.loadWithEvent(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}
	if topic.AuthorID != callerID && !isEventOrganizer(event, callerID, callerRole) {
		return nil, ErrNoPermission
	}
	if event.RoundActive {
		return nil, ErrRoundActive
	}

	if req.Title != nil {
		topic.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		topic.Description = *req.Description
	}
	topic.UpdatedBy = &callerID

	if err := s.repo.Topic.Update(ctx, topic); err != nil {
		s.logger.Error("更新话题失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toTopicResponse(topic), nil
}

// ────────────────────── Delete ──────────────────────

func (s *topicService) Delete(ctx context.Context, id, callerID, callerRole string) error {
	topic, event, err := s.loadWithEvent(ctx, id, callerID, callerRole)
	if err != nil {
		return err
	}
	if topic.AuthorID != callerID && !isEventOrganizer(event, callerID, callerRole) {
		return ErrNoPermission
	}
	if event.RoundActive {
		return ErrRoundActive
	}

	if err := s.repo.Topic.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除话题失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Vote / Unvote ──────────────────────

// Vote 不区分志愿的投票
func (s *topicService) Vote(ctx context.Context, id, callerID, callerRole string) (*dto.TopicResponse, error) {
	topic, event, err := s.loadWithEvent(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}
	if event.RoundActive {
		return nil, ErrRoundActive
	}

	if _, err := s.repo.TopicVote.Get(ctx, id, callerID); err == nil {
		return nil, ErrAlreadyVoted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询投票失败", zap.Error(err))
		return nil, err
	}

	vote := &model.TopicVote{
		TopicID: topic.TopicID,
		EventID: topic.EventID,
		UserID:  callerID,
		Kind:    model.VoteKindLegacy,
	}
	if err := s.repo.TopicVote.Create(ctx, vote); err != nil {
		s.logger.Error("投票失败", zap.String("topic_id", id), zap.Error(err))
		return nil, err
	}

	return s.refreshSelection(ctx, event, id)
}

func (s *topicService) Unvote(ctx context.Context, id, callerID, callerRole string) error {
	_, event, err := s.loadWithEvent(ctx, id, callerID, callerRole)
	if err != nil {
		return err
	}
	if event.RoundActive {
		return ErrRoundActive
	}

	vote, err := s.repo.TopicVote.Get(ctx, id, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVoteNotFound
		}
		s.logger.Error("查询投票失败", zap.Error(err))
		return err
	}

	if err := s.repo.TopicVote.Delete(ctx, vote.TopicVoteID); err != nil {
		s.logger.Error("取消投票失败", zap.String("topic_id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── SetPreferences ──────────────────────

// SetPreferences 设置第一/第二志愿
// 每人每活动各至多一个第一志愿与第二志愿；新志愿替换旧志愿，同一话题上的原有投票被替换
func (s *topicService) SetPreferences(ctx context.Context, eventID string, req *dto.SetPreferencesRequest, callerID, callerRole string) (*dto.MyPreferencesResponse, error) {
	if req.FirstChoiceTopicID == nil && req.SecondChoiceTopicID == nil {
		return nil, ErrPreferenceEmpty
	}
	if req.FirstChoiceTopicID != nil && req.SecondChoiceTopicID != nil &&
		*req.FirstChoiceTopicID == *req.SecondChoiceTopicID {
		return nil, ErrPreferenceDuplicate
	}

	event, err := s.writableEvent(ctx, eventID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	type choice struct {
		kind    string
		topicID string
	}
	var choices []choice
	if req.FirstChoiceTopicID != nil {
		choices = append(choices, choice{model.VoteKindFirst, *req.FirstChoiceTopicID})
	}
	if req.SecondChoiceTopicID != nil {
		choices = append(choices, choice{model.VoteKindSecond, *req.SecondChoiceTopicID})
	}

	// 话题必须属于该活动
	for _, c := range choices {
		topic, err := s.repo.Topic.GetByID(ctx, c.topicID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTopicNotFound
			}
			s.logger.Error("查询话题失败", zap.String("id", c.topicID), zap.Error(err))
			return nil, err
		}
		if topic.EventID != eventID {
			return nil, ErrTopicNotFound
		}
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()
	txRepo := s.repo.WithTx(tx)

	for _, c := range choices {
		if err := replacePreference(ctx, txRepo, eventID, callerID, c.kind, c.topicID); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("设置志愿失败", zap.String("kind", c.kind), zap.Error(err))
			return nil, err
		}
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	for _, c := range choices {
		if _, err := s.refreshSelection(ctx, event, c.topicID); err != nil {
			return nil, err
		}
	}

	return s.MyPreferences(ctx, eventID, callerID, callerRole)
}

// replacePreference 删除同类型旧志愿及该话题上的原有投票后写入新志愿
func replacePreference(ctx context.Context, repo *repository.Repository, eventID, userID, kind, topicID string) error {
	if old, err := repo.TopicVote.GetPreference(ctx, eventID, userID, kind); err == nil {
		if err := repo.TopicVote.Delete(ctx, old.TopicVoteID); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if existing, err := repo.TopicVote.Get(ctx, topicID, userID); err == nil {
		if err := repo.TopicVote.Delete(ctx, existing.TopicVoteID); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return repo.TopicVote.Create(ctx, &model.TopicVote{
		TopicID: topicID,
		EventID: eventID,
		UserID:  userID,
		Kind:    kind,
	})
}

// ────────────────────── MyPreferences / ClearVotes ──────────────────────

func (s *topicService) MyPreferences(ctx context.Context, eventID, callerID, callerRole string) (*dto.MyPreferencesResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}

	votes, err := s.repo.TopicVote.ListByUser(ctx, eventID, callerID)
	if err != nil {
		s.logger.Error("查询投票失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.MyPreferencesResponse{VotedTopicIDs: make([]string, 0, len(votes))}
	for _, v := range votes {
		switch v.Kind {
		case model.VoteKindFirst:
			resp.FirstChoiceTopicID = v.TopicID
		case model.VoteKindSecond:
			resp.SecondChoiceTopicID = v.TopicID
		}
		resp.VotedTopicIDs = append(resp.VotedTopicIDs, v.TopicID)
	}
	return resp, nil
}

// ClearVotes 撤回当前用户在活动中的全部投票与志愿
func (s *topicService) ClearVotes(ctx context.Context, eventID, callerID, callerRole string) error {
	if _, err := s.writableEvent(ctx, eventID, callerID, callerRole); err != nil {
		return err
	}
	if err := s.repo.TopicVote.DeleteByUser(ctx, eventID, callerID); err != nil {
		s.logger.Error("清除投票失败", zap.String("event_id", eventID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Select ──────────────────────

// Select 组织者手动选择/取消选择本轮话题
func (s *topicService) Select(ctx context.Context, id string, req *dto.SelectTopicRequest, callerID, callerRole string) (*dto.TopicResponse, error) {
	topic, event, err := s.loadWithEvent(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	topic.SelectedForRound = *req.Selected
	topic.UpdatedBy = &callerID

	if err := s.repo.Topic.Update(ctx, topic); err != nil {
		s.logger.Error("选择话题失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toTopicResponse(topic), nil
}

// ── 内部辅助方法 ──

func (s *topicService) loadWithEvent(ctx context.Context, id, callerID, callerRole string) (*model.Topic, *model.Event, error) {
	topic, err := s.repo.Topic.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTopicNotFound
		}
		s.logger.Error("查询话题失败", zap.String("id", id), zap.Error(err))
		return nil, nil, err
	}

	event, err := loadEvent(ctx, s.repo, s.logger, topic.EventID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, nil, err
	}
	return topic, event, nil
}

// writableEvent 活动可访问、未关闭且不在讨论轮次中
func (s *topicService) writableEvent(ctx context.Context, eventID, callerID, callerRole string) (*model.Event, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}
	if event.Status == model.EventStatusClosed {
		return nil, ErrEventClosed
	}
	if event.RoundActive {
		return nil, ErrRoundActive
	}
	return event, nil
}

// refreshSelection 票数达到阈值时自动选入本轮；并发冲突时跳过（下次投票会再次检查）
func (s *topicService) refreshSelection(ctx context.Context, event *model.Event, topicID string) (*dto.TopicResponse, error) {
	topic, err := s.repo.Topic.GetByID(ctx, topicID)
	if err != nil {
		s.logger.Error("查询话题失败", zap.String("id", topicID), zap.Error(err))
		return nil, err
	}

	settings, err := s.settings.forEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	gt := toGroupingTopic(topic)
	if !topic.SelectedForRound && gt.Votes() >= settings.MaxVotesPerTopic {
		topic.SelectedForRound = true
		if err := s.repo.Topic.Update(ctx, topic); err != nil {
			if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Error("自动选择话题失败", zap.String("id", topicID), zap.Error(err))
				return nil, err
			}
			topic.SelectedForRound = false
		}
	}

	return toTopicResponse(topic), nil
}

func toTopicResponse(t *model.Topic) *dto.TopicResponse {
	gt := toGroupingTopic(t)
	resp := &dto.TopicResponse{
		ID:                 t.TopicID,
		EventID:            t.EventID,
		Title:              t.Title,
		Description:        t.Description,
		AuthorID:           t.AuthorID,
		Votes:              gt.Votes(),
		Voters:             nonNil(gt.Voters),
		FirstChoiceVoters:  nonNil(gt.FirstChoiceVoters),
		SecondChoiceVoters: nonNil(gt.SecondChoiceVoters),
		SelectedForRound:   t.SelectedForRound,
		Version:            t.Version,
		CreatedAt:          formatTime(t.CreatedAt),
	}
	if t.Author != nil {
		resp.AuthorName = t.Author.Name
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
