package model

import "time"

// 活动状态
const (
	EventStatusDraft  = "draft"
	EventStatusOpen   = "open"
	EventStatusClosed = "closed"
)

// Event 活动表 — 对应 events
// MaxVotesPerTopic / MinParticipantsPerTable 为空时使用系统配置
type Event struct {
	EventID                 string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	Name                    string     `gorm:"type:varchar(200);not null"                     json:"name"`
	Description             string     `gorm:"type:text;not null;default:''"                  json:"description"`
	JoinCode                string     `gorm:"type:varchar(20);not null"                      json:"join_code"`
	Status                  string     `gorm:"type:varchar(20);not null;default:'open'"       json:"status"` // draft | open | closed
	RoundActive             bool       `gorm:"not null;default:false"                         json:"round_active"`
	RoundNumber             int        `gorm:"not null;default:0"                             json:"round_number"`
	RoundStartedAt          *time.Time `json:"round_started_at,omitempty"`
	MaxVotesPerTopic        *int       `json:"max_votes_per_topic,omitempty"`
	MinParticipantsPerTable *int       `json:"min_participants_per_table,omitempty"`
	GuestEmailDomain        string     `gorm:"type:varchar(255);not null;default:''"         json:"guest_email_domain"`
	OrganizerID             string     `gorm:"type:uuid;not null"                             json:"organizer_id"`
	VersionedModel

	// 关联
	Organizer *User `gorm:"foreignKey:OrganizerID;references:UserID" json:"organizer,omitempty"`
}

// TableName 指定表名
func (Event) TableName() string { return "events" }

// EventParticipant 活动参与者 — 对应 event_participants
type EventParticipant struct {
	EventID  string    `gorm:"type:uuid;primaryKey"               json:"event_id"`
	UserID   string    `gorm:"type:uuid;primaryKey"               json:"user_id"`
	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (EventParticipant) TableName() string { return "event_participants" }
