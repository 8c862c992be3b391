package dto

// ── 活动模块 DTO ──

// CreateEventRequest 创建活动请求
type CreateEventRequest struct {
	Name                    string `json:"name"                       binding:"required,notblank,min=2,max=200"`
	Description             string `json:"description"                binding:"omitempty,max=2000"`
	MaxVotesPerTopic        *int   `json:"max_votes_per_topic"        binding:"omitempty,min=1,max=1000"`
	MinParticipantsPerTable *int   `json:"min_participants_per_table" binding:"omitempty,min_table"`
	GuestEmailDomain        string `json:"guest_email_domain"         binding:"omitempty,fqdn"`
}

// UpdateEventRequest 更新活动请求（含分组设置）
type UpdateEventRequest struct {
	Name                    *string `json:"name"                       binding:"omitempty,notblank,min=2,max=200"`
	Description             *string `json:"description"                binding:"omitempty,max=2000"`
	Status                  *string `json:"status"                     binding:"omitempty,oneof=draft open closed"`
	MaxVotesPerTopic        *int    `json:"max_votes_per_topic"        binding:"omitempty,min=1,max=1000"`
	MinParticipantsPerTable *int    `json:"min_participants_per_table" binding:"omitempty,min_table"`
	GuestEmailDomain        *string `json:"guest_email_domain"         binding:"omitempty,fqdn"`
}

// JoinEventRequest 通过加入码加入活动
type JoinEventRequest struct {
	JoinCode string `json:"join_code" binding:"required,join_code"`
}

// EventListRequest 活动列表查询参数
type EventListRequest struct {
	PaginationRequest
}

// EventResponse 活动信息响应
// 分组设置为生效值（活动未设置时取系统默认）
type EventResponse struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Description             string  `json:"description"`
	JoinCode                string  `json:"join_code,omitempty"` // 仅组织者可见
	Status                  string  `json:"status"`
	RoundActive             bool    `json:"round_active"`
	RoundNumber             int     `json:"round_number"`
	RoundStartedAt          *string `json:"round_started_at,omitempty"`
	MaxVotesPerTopic        int     `json:"max_votes_per_topic"`
	MinParticipantsPerTable int     `json:"min_participants_per_table"`
	GuestEmailDomain        string  `json:"guest_email_domain"`
	OrganizerID             string  `json:"organizer_id"`
	ParticipantCount        int     `json:"participant_count,omitempty"` // 仅详情接口返回
	CreatedAt               string  `json:"created_at"`
}
