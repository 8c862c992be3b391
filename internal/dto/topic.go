package dto

// ── 话题模块 DTO ──

// CreateTopicRequest 提交话题请求
type CreateTopicRequest struct {
	Title       string `json:"title"       binding:"required,notblank,min=3,max=200"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

// UpdateTopicRequest 更新话题请求
type UpdateTopicRequest struct {
	Title       *string `json:"title"       binding:"omitempty,notblank,min=3,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

// SetPreferencesRequest 设置第一/第二志愿（两者至少一个，且不能相同）
type SetPreferencesRequest struct {
	FirstChoiceTopicID  *string `json:"first_choice_topic_id"  binding:"omitempty,uuid"`
	SecondChoiceTopicID *string `json:"second_choice_topic_id" binding:"omitempty,uuid,nefield=FirstChoiceTopicID"`
}

// SelectTopicRequest 组织者选择/取消选择话题
type SelectTopicRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

// TopicResponse 话题信息响应
type TopicResponse struct {
	ID                 string   `json:"id"`
	EventID            string   `json:"event_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AuthorID           string   `json:"author_id"`
	AuthorName         string   `json:"author_name,omitempty"`
	Votes              int      `json:"votes"`
	Voters             []string `json:"voters"`
	FirstChoiceVoters  []string `json:"first_choice_voters"`
	SecondChoiceVoters []string `json:"second_choice_voters"`
	SelectedForRound   bool     `json:"selected_for_round"`
	Version            int      `json:"version"`
	CreatedAt          string   `json:"created_at"`
}

// MyPreferencesResponse 当前用户的投票情况
type MyPreferencesResponse struct {
	FirstChoiceTopicID  string   `json:"first_choice_topic_id,omitempty"`
	SecondChoiceTopicID string   `json:"second_choice_topic_id,omitempty"`
	VotedTopicIDs       []string `json:"voted_topic_ids"`
}
