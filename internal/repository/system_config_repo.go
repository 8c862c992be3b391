package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmgrok/unconference/internal/model"
)

// SystemConfigRepository 全局分组默认值（单行表）
type SystemConfigRepository interface {
	Get(ctx context.Context) (*model.SystemConfig, error)
	Update(ctx context.Context, cfg *model.SystemConfig) error
}

type systemConfigRepo struct {
	db *gorm.DB
}

// NewSystemConfigRepo 创建 SystemConfigRepository 实例
func NewSystemConfigRepo(db *gorm.DB) SystemConfigRepository {
	return &systemConfigRepo{db: db}
}

// Get 未初始化时返回 gorm.ErrRecordNotFound，由 Service 回退到配置文件默认值
func (r *systemConfigRepo) Get(ctx context.Context) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	if err := r.db.WithContext(ctx).Take(&cfg, "singleton = ?", true).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Update 以 singleton 为冲突键 upsert，首次保存即完成初始化
func (r *systemConfigRepo) Update(ctx context.Context, cfg *model.SystemConfig) error {
	cfg.Singleton = true
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "singleton"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"max_votes_per_topic":        cfg.MaxVotesPerTopic,
				"min_participants_per_table": cfg.MinParticipantsPerTable,
				"guest_email_domain":         cfg.GuestEmailDomain,
				"updated_by":                 cfg.UpdatedBy,
				"updated_at":                 gorm.Expr("NOW()"),
			}),
		}).
		Create(cfg).Error
}
