package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmgrok/unconference/internal/model"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
)

// EventRepository 活动数据访问接口
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetByJoinCode(ctx context.Context, code string) (*model.Event, error)
	List(ctx context.Context, userID string, offset, limit int) ([]model.Event, int64, error)
	Update(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id string, deletedBy string) error

	AddParticipant(ctx context.Context, eventID, userID string) error
	IsParticipant(ctx context.Context, eventID, userID string) (bool, error)
	ListParticipants(ctx context.Context, eventID string) ([]model.EventParticipant, error)
}

type eventRepo struct {
	db *gorm.DB
}

// NewEventRepo 创建 EventRepository 实例
func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) GetByJoinCode(ctx context.Context, code string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Where("join_code = ?", code).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// List userID 非空时仅返回该用户组织或参与的活动
func (r *eventRepo) List(ctx context.Context, userID string, offset, limit int) ([]model.Event, int64, error) {
	var events []model.Event
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Event{})
	if userID != "" {
		db = db.Where("organizer_id = ? OR event_id IN (?)", userID,
			r.db.Model(&model.EventParticipant{}).Select("event_id").Where("user_id = ?", userID))
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&events).Error
	return events, total, err
}

func (r *eventRepo) Update(ctx context.Context, event *model.Event) error {
	oldVersion := event.Version
	result := r.db.WithContext(ctx).
		Model(event).
		Where("event_id = ? AND version = ?", event.EventID, oldVersion).
		Updates(map[string]interface{}{
			"name":                       event.Name,
			"description":                event.Description,
			"status":                     event.Status,
			"round_active":               event.RoundActive,
			"round_number":               event.RoundNumber,
			"round_started_at":           event.RoundStartedAt,
			"max_votes_per_topic":        event.MaxVotesPerTopic,
			"min_participants_per_table": event.MinParticipantsPerTable,
			"guest_email_domain":         event.GuestEmailDomain,
			"updated_by":                 event.UpdatedBy,
			"version":                    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	event.Version = oldVersion + 1
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("event_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// AddParticipant 加入活动（重复加入忽略）
func (r *eventRepo) AddParticipant(ctx context.Context, eventID, userID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.EventParticipant{EventID: eventID, UserID: userID}).Error
}

func (r *eventRepo) IsParticipant(ctx context.Context, eventID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.EventParticipant{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *eventRepo) ListParticipants(ctx context.Context, eventID string) ([]model.EventParticipant, error) {
	var participants []model.EventParticipant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ?", eventID).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}
