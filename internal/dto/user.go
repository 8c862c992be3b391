package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role string `form:"role" binding:"omitempty,oneof=admin organizer participant guest"`
}

// UpdateUserRequest 更新个人信息请求
type UpdateUserRequest struct {
	Name  *string `json:"name"  binding:"omitempty,notblank,min=2,max=100"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// AssignRoleRequest 分配角色请求（访客角色不可分配）
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin organizer participant"`
}
