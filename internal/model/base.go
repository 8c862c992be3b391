package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ── PostgreSQL JSONB 自定义类型 ──

// scanJSON 将 JSONB 列（[]byte 或 string）解码到 dst
func scanJSON(src interface{}, dst interface{}, typeName string) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("%s.Scan: unsupported type %T", typeName, src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s.Scan: %w", typeName, err)
	}
	return nil
}

// GroupMember 分组成员（存于 group_assignments.participants / waitlist）
type GroupMember struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// MemberList 对应 JSONB 数组，实现 GORM Scanner/Valuer 接口
type MemberList []GroupMember

// Scan 解析 JSONB 数组；NULL 视为空列表
func (l *MemberList) Scan(src interface{}) error {
	*l = MemberList{}
	if src == nil {
		return nil
	}
	return scanJSON(src, l, "MemberList")
}

// Value 序列化为 JSON；nil 写入 []
func (l MemberList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]GroupMember(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// StringList 对应 JSONB 字符串数组
type StringList []string

// Scan 解析 JSONB 字符串数组
func (l *StringList) Scan(src interface{}) error {
	*l = StringList{}
	if src == nil {
		return nil
	}
	return scanJSON(src, l, "StringList")
}

// Value 序列化为 JSON；nil 写入 []
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// SnapshotStats 分组快照统计（JSONB 对象）
// 分组与重新平衡共用，未使用的字段为 0
type SnapshotStats struct {
	GroupCount             int `json:"group_count"`
	TotalParticipants      int `json:"total_participants"`
	AssignedParticipants   int `json:"assigned_participants"`
	WaitlistedParticipants int `json:"waitlisted_participants"`
	RoomsUsed              int `json:"rooms_used"`
	RoomsAvailable         int `json:"rooms_available"`
	UtilizationRate        int `json:"utilization_rate"`
	GroupsBefore           int `json:"groups_before,omitempty"`
	GroupsAfter            int `json:"groups_after,omitempty"`
	ParticipantsReassigned int `json:"participants_reassigned,omitempty"`
}

// Scan 解析 JSONB 对象
func (s *SnapshotStats) Scan(src interface{}) error {
	*s = SnapshotStats{}
	if src == nil {
		return nil
	}
	return scanJSON(src, s, "SnapshotStats")
}

// Value 序列化为 JSON
func (s SnapshotStats) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid"                          json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid"                          json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"    json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}
