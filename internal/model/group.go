package model

import "time"

// 快照状态与类型
const (
	SnapshotStatusCurrent  = "current"
	SnapshotStatusArchived = "archived"

	SnapshotKindAssignment = "assignment"
	SnapshotKindRebalance  = "rebalance"
)

// GroupSnapshot 分组快照表 — 对应 group_snapshots
// 每个活动至多一个 current 快照；新快照写入时旧快照归档
type GroupSnapshot struct {
	SnapshotID              string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"snapshot_id"`
	EventID                 string        `gorm:"type:uuid;not null"                             json:"event_id"`
	RoundNumber             int           `gorm:"not null;default:0"                             json:"round_number"`
	Status                  string        `gorm:"type:varchar(20);not null;default:'current'"    json:"status"` // current | archived
	Kind                    string        `gorm:"type:varchar(20);not null"                      json:"kind"`   // assignment | rebalance
	MinParticipantsPerTable *int          `json:"min_participants_per_table,omitempty"`
	Warnings                StringList    `gorm:"type:jsonb;not null;default:'[]'"               json:"warnings"`
	Statistics              SnapshotStats `gorm:"type:jsonb;not null;default:'{}'"               json:"statistics"`
	RebalancedAt            *time.Time    `json:"rebalanced_at,omitempty"`
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`

	// 关联
	Assignments []GroupAssignment `gorm:"foreignKey:SnapshotID" json:"assignments,omitempty"`
}

// TableName 指定表名
func (GroupSnapshot) TableName() string { return "group_snapshots" }

// GroupAssignment 分组明细表 — 对应 group_assignments
// TopicID 为空表示溢出组；RoomID 为空表示未分配房间
type GroupAssignment struct {
	AssignmentID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	SnapshotID     string     `gorm:"type:uuid;not null"                             json:"snapshot_id"`
	GroupNumber    int        `gorm:"not null"                                       json:"group_number"`
	TopicID        *string    `gorm:"type:uuid"                                      json:"topic_id,omitempty"`
	TopicTitle     string     `gorm:"type:varchar(200);not null"                     json:"topic_title"`
	RoomID         *string    `gorm:"type:uuid"                                      json:"room_id,omitempty"`
	RoomName       string     `gorm:"type:varchar(100);not null;default:''"          json:"room_name"`
	RoomCapacity   int        `gorm:"not null;default:0"                             json:"room_capacity"`
	RoomLocation   string     `gorm:"type:varchar(200);not null;default:''"          json:"room_location"`
	Participants   MemberList `gorm:"type:jsonb;not null;default:'[]'"               json:"participants"`
	Waitlist       MemberList `gorm:"type:jsonb;not null;default:'[]'"               json:"waitlist"`
	IsOvercapacity bool       `gorm:"not null;default:false"                         json:"is_overcapacity"`
	ActualCapacity int        `gorm:"not null;default:0"                             json:"actual_capacity"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (GroupAssignment) TableName() string { return "group_assignments" }

// GroupChangeLog 分组变更记录表 — 对应 group_change_logs（纯审计日志）
type GroupChangeLog struct {
	ChangeLogID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	SnapshotID  string    `gorm:"type:uuid;not null"                             json:"snapshot_id"`
	EventID     string    `gorm:"type:uuid;not null"                             json:"event_id"`
	Seq         int       `gorm:"not null"                                       json:"seq"`
	Message     string    `gorm:"type:text;not null"                             json:"message"`
	OperatorID  string    `gorm:"type:uuid;not null"                             json:"operator_id"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (GroupChangeLog) TableName() string { return "group_change_logs" }
