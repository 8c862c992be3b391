package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User            UserRepository
	Event           EventRepository
	Topic           TopicRepository
	TopicVote       TopicVoteRepository
	Room            RoomRepository
	GroupSnapshot   GroupSnapshotRepository
	GroupAssignment GroupAssignmentRepository
	GroupChangeLog  GroupChangeLogRepository
	SystemConfig    SystemConfigRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:              db,
		User:            NewUserRepo(db),
		Event:           NewEventRepo(db),
		Topic:           NewTopicRepo(db),
		TopicVote:       NewTopicVoteRepo(db),
		Room:            NewRoomRepo(db),
		GroupSnapshot:   NewGroupSnapshotRepo(db),
		GroupAssignment: NewGroupAssignmentRepo(db),
		GroupChangeLog:  NewGroupChangeLogRepo(db),
		SystemConfig:    NewSystemConfigRepo(db),
	}
}

// BeginTx 开启事务
// 未持有数据库连接（单元测试中的 mock 聚合）时返回 nil，调用方按无事务执行
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Ping 数据库健康检查
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
