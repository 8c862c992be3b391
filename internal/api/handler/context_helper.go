package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/pkg/response"
)

// 上下文键（由 JWTAuth 中间件注入）
const (
	ctxKeyUserID   = "user_id"
	ctxKeyRole     = "role"
	ctxKeyTokenJTI = "token_jti"
	ctxKeyTokenExp = "token_exp"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxKeyUserID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxKeyRole)
}

// MustGetCaller 同时提取 user_id 与 role
func MustGetCaller(c *gin.Context) (userID, role string, ok bool) {
	if userID, ok = MustGetUserID(c); !ok {
		return "", "", false
	}
	if role, ok = MustGetRole(c); !ok {
		return "", "", false
	}
	return userID, role, true
}

// tokenRemaining 当前 Access Token 的 jti 与剩余有效期，供登出加入黑名单
func tokenRemaining(c *gin.Context) (string, time.Duration) {
	jti := c.GetString(ctxKeyTokenJTI)
	exp, ok := c.Get(ctxKeyTokenExp)
	if !ok {
		return jti, 0
	}
	t, ok := exp.(time.Time)
	if !ok {
		return jti, 0
	}
	return jti, time.Until(t)
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// mustParam 读取路径参数，为空时写入 400
func mustParam(c *gin.Context, name, label string) (string, bool) {
	v := c.Param(name)
	if v == "" {
		response.BadRequest(c, 10001, label+"不能为空")
		return "", false
	}
	return v, true
}

// bindJSON 绑定并校验请求体，失败时写入 400（附首个字段错误）；超出 BodyLimit 时写入 413
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return false
		}
		response.BadRequest(c, 10001, dto.ValidationMessage(err))
		return false
	}
	return true
}

// bindQuery 绑定并校验查询参数
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.BadRequest(c, 10001, dto.ValidationMessage(err))
		return false
	}
	return true
}
