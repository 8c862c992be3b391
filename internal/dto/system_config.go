package dto

// ── 系统配置模块 DTO ──

// UpdateSystemConfigRequest 更新系统默认分组参数
type UpdateSystemConfigRequest struct {
	MaxVotesPerTopic        *int    `json:"max_votes_per_topic"        binding:"omitempty,min=1,max=1000"`
	MinParticipantsPerTable *int    `json:"min_participants_per_table" binding:"omitempty,min_table"`
	GuestEmailDomain        *string `json:"guest_email_domain"         binding:"omitempty,fqdn"`
}

// SystemConfigResponse 系统配置响应
type SystemConfigResponse struct {
	MaxVotesPerTopic        int    `json:"max_votes_per_topic"`
	MinParticipantsPerTable int    `json:"min_participants_per_table"`
	GuestEmailDomain        string `json:"guest_email_domain"`
	UpdatedAt               string `json:"updated_at"`
}
