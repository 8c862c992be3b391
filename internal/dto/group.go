package dto

import "github.com/dmgrok/unconference/internal/grouping"

// ── 分组模块 DTO ──

// RebalanceRequest 重新平衡请求；未指定时使用活动设置
type RebalanceRequest struct {
	MinParticipantsPerTable *int `json:"min_participants_per_table" binding:"omitempty,min_table"`
}

// ChangeLogListRequest 变更日志查询参数
type ChangeLogListRequest struct {
	PaginationRequest
}

// CreateGroupsResponse 分组结果
type CreateGroupsResponse struct {
	SnapshotID string `json:"snapshot_id"`
	grouping.AssignmentResult
	CreatedAt string `json:"created_at"`
}

// RebalanceResponse 重新平衡结果
type RebalanceResponse struct {
	SnapshotID string `json:"snapshot_id,omitempty"` // 无需重新平衡时为空
	grouping.RebalanceResult
	MinParticipantsPerTable int    `json:"min_participants_per_table"`
	RebalancedAt            string `json:"rebalanced_at,omitempty"`
}

// CurrentGroupsResponse 当前分组快照
type CurrentGroupsResponse struct {
	SnapshotID              string           `json:"snapshot_id"`
	EventID                 string           `json:"event_id"`
	RoundNumber             int              `json:"round_number"`
	Kind                    string           `json:"kind"` // assignment | rebalance
	MinParticipantsPerTable *int             `json:"min_participants_per_table,omitempty"`
	Warnings                []string         `json:"warnings"`
	Groups                  []grouping.Group `json:"groups"`
	CreatedBy               string           `json:"created_by,omitempty"`
	CreatedAt               string           `json:"created_at"`
	RebalancedAt            *string          `json:"rebalanced_at,omitempty"`
	Version                 int              `json:"version"`
}

// MyGroupResponse 当前用户所在分组
type MyGroupResponse struct {
	Waitlisted bool           `json:"waitlisted"`
	Group      grouping.Group `json:"group"`
}

// ChangeLogResponse 分组变更记录
type ChangeLogResponse struct {
	ID         string `json:"id"`
	SnapshotID string `json:"snapshot_id"`
	Seq        int    `json:"seq"`
	Message    string `json:"message"`
	OperatorID string `json:"operator_id"`
	CreatedAt  string `json:"created_at"`
}
