package model

// SystemConfig 系统配置表 — 对应 system_config（单行强类型）
// 活动未单独设置时使用这里的默认值
type SystemConfig struct {
	Singleton               bool   `gorm:"primaryKey;default:true"                   json:"-"`
	MaxVotesPerTopic        int    `gorm:"not null;default:15"                       json:"max_votes_per_topic"`
	MinParticipantsPerTable int    `gorm:"not null;default:4"                        json:"min_participants_per_table"`
	GuestEmailDomain        string `gorm:"type:varchar(255);not null"                json:"guest_email_domain"`
	BaseModel
}

// TableName 指定表名
func (SystemConfig) TableName() string { return "system_config" }
