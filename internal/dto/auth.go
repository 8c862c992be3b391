package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 注册请求（可附带活动加入码，注册后直接加入活动）
type RegisterRequest struct {
	Name     string `json:"name"      binding:"required,notblank,min=2,max=100"`
	Email    string `json:"email"     binding:"required,email"`
	Password string `json:"password"  binding:"required,min=8,max=64"`
	JoinCode string `json:"join_code" binding:"omitempty,join_code"`
}

// GuestJoinRequest 访客加入请求（无需注册）
type GuestJoinRequest struct {
	JoinCode string `json:"join_code" binding:"required,join_code"`
	Name     string `json:"name"      binding:"omitempty,max=100"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=64"`
}
