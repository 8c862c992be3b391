package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/model"
)

// RoomRepository 房间数据访问接口
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	BatchCreate(ctx context.Context, rooms []model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	ListByEvent(ctx context.Context, eventID string, onlyAvailable bool) ([]model.Room, error)
	ExistsByName(ctx context.Context, eventID, name, excludeID string) (bool, error)
	Update(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type roomRepo struct {
	db *gorm.DB
}

// NewRoomRepo 创建 RoomRepository 实例
func NewRoomRepo(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepo) BatchCreate(ctx context.Context, rooms []model.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rooms).Error
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Where("room_id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListByEvent 按创建顺序返回（分组引擎在此基础上稳定排序）
func (r *roomRepo) ListByEvent(ctx context.Context, eventID string, onlyAvailable bool) ([]model.Room, error) {
	var rooms []model.Room
	db := r.db.WithContext(ctx).Where("event_id = ?", eventID)

	if onlyAvailable {
		db = db.Where("is_available = ?", true)
	}

	err := db.Order("created_at ASC, name ASC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepo) ExistsByName(ctx context.Context, eventID, name, excludeID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("event_id = ? AND name = ?", eventID, name)
	if excludeID != "" {
		db = db.Where("room_id <> ?", excludeID)
	}
	err := db.Count(&count).Error
	return count > 0, err
}

func (r *roomRepo) Update(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

func (r *roomRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("room_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
