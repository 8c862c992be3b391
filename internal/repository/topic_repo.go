package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/model"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
)

// TopicRepository 话题数据访问接口
type TopicRepository interface {
	Create(ctx context.Context, topic *model.Topic) error
	GetByID(ctx context.Context, id string) (*model.Topic, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Topic, error)
	Update(ctx context.Context, topic *model.Topic) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

// TopicVoteRepository 投票数据访问接口
type TopicVoteRepository interface {
	Create(ctx context.Context, vote *model.TopicVote) error
	Get(ctx context.Context, topicID, userID string) (*model.TopicVote, error)
	GetPreference(ctx context.Context, eventID, userID, kind string) (*model.TopicVote, error)
	ListByUser(ctx context.Context, eventID, userID string) ([]model.TopicVote, error)
	Delete(ctx context.Context, topicVoteID string) error
	DeleteByUser(ctx context.Context, eventID, userID string) error
}

// ── Topic Repository 实现 ──

type topicRepo struct {
	db *gorm.DB
}

// NewTopicRepo 创建 TopicRepository 实例
func NewTopicRepo(db *gorm.DB) TopicRepository {
	return &topicRepo{db: db}
}

func (r *topicRepo) Create(ctx context.Context, topic *model.Topic) error {
	return r.db.WithContext(ctx).Create(topic).Error
}

// withVotes 预加载投票与投票人（按投票时间排序，保证入座顺序稳定）
func withVotes(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Votes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, topic_vote_id ASC")
		}).
		Preload("Votes.User")
}

func (r *topicRepo) GetByID(ctx context.Context, id string) (*model.Topic, error) {
	var topic model.Topic
	err := withVotes(r.db.WithContext(ctx)).
		Where("topic_id = ?", id).
		First(&topic).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Topic, error) {
	var topics []model.Topic
	err := withVotes(r.db.WithContext(ctx)).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&topics).Error
	return topics, err
}

func (r *topicRepo) Update(ctx context.Context, topic *model.Topic) error {
	oldVersion := topic.Version
	result := r.db.WithContext(ctx).
		Model(topic).
		Where("topic_id = ? AND version = ?", topic.TopicID, oldVersion).
		Updates(map[string]interface{}{
			"title":              topic.Title,
			"description":        topic.Description,
			"selected_for_round": topic.SelectedForRound,
			"updated_by":         topic.UpdatedBy,
			"version":            oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	topic.Version = oldVersion + 1
	return nil
}

func (r *topicRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Topic{}).
		Where("topic_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// ── TopicVote Repository 实现 ──

type topicVoteRepo struct {
	db *gorm.DB
}

// NewTopicVoteRepo 创建 TopicVoteRepository 实例
func NewTopicVoteRepo(db *gorm.DB) TopicVoteRepository {
	return &topicVoteRepo{db: db}
}

func (r *topicVoteRepo) Create(ctx context.Context, vote *model.TopicVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *topicVoteRepo) Get(ctx context.Context, topicID, userID string) (*model.TopicVote, error) {
	var vote model.TopicVote
	err := r.db.WithContext(ctx).
		Where("topic_id = ? AND user_id = ?", topicID, userID).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// GetPreference 查询用户在活动中的第一/第二志愿
func (r *topicVoteRepo) GetPreference(ctx context.Context, eventID, userID, kind string) (*model.TopicVote, error) {
	var vote model.TopicVote
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND kind = ?", eventID, userID, kind).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *topicVoteRepo) ListByUser(ctx context.Context, eventID, userID string) ([]model.TopicVote, error) {
	var votes []model.TopicVote
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Order("created_at ASC").
		Find(&votes).Error
	return votes, err
}

func (r *topicVoteRepo) Delete(ctx context.Context, topicVoteID string) error {
	return r.db.WithContext(ctx).
		Where("topic_vote_id = ?", topicVoteID).
		Delete(&model.TopicVote{}).Error
}

func (r *topicVoteRepo) DeleteByUser(ctx context.Context, eventID, userID string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&model.TopicVote{}).Error
}
