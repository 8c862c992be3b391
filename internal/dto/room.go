package dto

// ── 房间模块 DTO ──

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Name        string `json:"name"         binding:"required,notblank,min=1,max=100"`
	Capacity    int    `json:"capacity"     binding:"required,min=1,max=10000"`
	Location    string `json:"location"     binding:"omitempty,max=200"`
	Description string `json:"description"  binding:"omitempty,max=2000"`
	IsAvailable *bool  `json:"is_available"`
}

// UpdateRoomRequest 更新房间请求
type UpdateRoomRequest struct {
	Name        *string `json:"name"         binding:"omitempty,notblank,min=1,max=100"`
	Capacity    *int    `json:"capacity"     binding:"omitempty,min=1,max=10000"`
	Location    *string `json:"location"     binding:"omitempty,max=200"`
	Description *string `json:"description"  binding:"omitempty,max=2000"`
	IsAvailable *bool   `json:"is_available"`
}

// RoomListRequest 房间列表查询参数
type RoomListRequest struct {
	OnlyAvailable bool `form:"only_available"`
}

// RoomResponse 房间信息响应
type RoomResponse struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Name        string `json:"name"`
	Capacity    int    `json:"capacity"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	IsAvailable bool   `json:"is_available"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ImportRoomResponse 批量导入房间响应
type ImportRoomResponse struct {
	Total   int              `json:"total"`
	Success int              `json:"success"`
	Failed  int              `json:"failed"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

// ImportRowError 导入错误详情
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
