package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/model"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
)

// GroupSnapshotRepository 分组快照数据访问接口
type GroupSnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.GroupSnapshot) error
	GetCurrent(ctx context.Context, eventID string) (*model.GroupSnapshot, error)
	Archive(ctx context.Context, snapshot *model.GroupSnapshot, operatorID string) error
	ListByEvent(ctx context.Context, eventID string) ([]model.GroupSnapshot, error)
}

// GroupAssignmentRepository 分组明细数据访问接口
type GroupAssignmentRepository interface {
	BatchCreate(ctx context.Context, assignments []model.GroupAssignment) error
}

// GroupChangeLogRepository 分组变更日志数据访问接口
type GroupChangeLogRepository interface {
	BatchCreate(ctx context.Context, logs []model.GroupChangeLog) error
	ListByEvent(ctx context.Context, eventID string, offset, limit int) ([]model.GroupChangeLog, int64, error)
}

// ── GroupSnapshot Repository 实现 ──

type groupSnapshotRepo struct {
	db *gorm.DB
}

// NewGroupSnapshotRepo 创建 GroupSnapshotRepository 实例
func NewGroupSnapshotRepo(db *gorm.DB) GroupSnapshotRepository {
	return &groupSnapshotRepo{db: db}
}

// Create 写入快照；Assignments 由 GroupAssignmentRepository 单独写入
func (r *groupSnapshotRepo) Create(ctx context.Context, snapshot *model.GroupSnapshot) error {
	return r.db.WithContext(ctx).Omit("Assignments").Create(snapshot).Error
}

func (r *groupSnapshotRepo) GetCurrent(ctx context.Context, eventID string) (*model.GroupSnapshot, error) {
	var snapshot model.GroupSnapshot
	err := r.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("group_number ASC")
		}).
		Where("event_id = ? AND status = ?", eventID, model.SnapshotStatusCurrent).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Archive 归档当前快照（版本号校验，防止并发覆盖）
func (r *groupSnapshotRepo) Archive(ctx context.Context, snapshot *model.GroupSnapshot, operatorID string) error {
	oldVersion := snapshot.Version
	result := r.db.WithContext(ctx).
		Model(snapshot).
		Where("snapshot_id = ? AND status = ? AND version = ?",
			snapshot.SnapshotID, model.SnapshotStatusCurrent, oldVersion).
		Updates(map[string]interface{}{
			"status":     model.SnapshotStatusArchived,
			"updated_by": operatorID,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	snapshot.Status = model.SnapshotStatusArchived
	snapshot.Version = oldVersion + 1
	return nil
}

func (r *groupSnapshotRepo) ListByEvent(ctx context.Context, eventID string) ([]model.GroupSnapshot, error) {
	var snapshots []model.GroupSnapshot
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&snapshots).Error
	return snapshots, err
}

// ── GroupAssignment Repository 实现 ──

type groupAssignmentRepo struct {
	db *gorm.DB
}

// NewGroupAssignmentRepo 创建 GroupAssignmentRepository 实例
func NewGroupAssignmentRepo(db *gorm.DB) GroupAssignmentRepository {
	return &groupAssignmentRepo{db: db}
}

func (r *groupAssignmentRepo) BatchCreate(ctx context.Context, assignments []model.GroupAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignments).Error
}

// ── GroupChangeLog Repository 实现 ──

type groupChangeLogRepo struct {
	db *gorm.DB
}

// NewGroupChangeLogRepo 创建 GroupChangeLogRepository 实例
func NewGroupChangeLogRepo(db *gorm.DB) GroupChangeLogRepository {
	return &groupChangeLogRepo{db: db}
}

func (r *groupChangeLogRepo) BatchCreate(ctx context.Context, logs []model.GroupChangeLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&logs).Error
}

func (r *groupChangeLogRepo) ListByEvent(ctx context.Context, eventID string, offset, limit int) ([]model.GroupChangeLog, int64, error) {
	var logs []model.GroupChangeLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.GroupChangeLog{}).
		Where("event_id = ?", eventID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC, seq ASC").
		Find(&logs).Error
	return logs, total, err
}
