package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/service"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
	"github.com/dmgrok/unconference/pkg/response"
)

// 业务错误码
//
//	10xxx 通用  11xxx 认证  12xxx 用户  13xxx 活动  14xxx 话题
//	15xxx 房间  16xxx 分组  17xxx 导出  18xxx 系统配置
const (
	codeBadRequest     = 10001
	codeForbidden      = 10003
	codeOptimisticLock = 10006
)

// handleCommonError 处理跨模块共享的业务错误，未识别的错误返回 500
func handleCommonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, codeForbidden, "无权操作")
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 13001, "活动不存在")
	case errors.Is(err, service.ErrNotEventParticipant):
		response.Forbidden(c, 13002, "尚未加入该活动")
	case errors.Is(err, service.ErrEventClosed):
		response.BadRequest(c, 13003, "活动已关闭")
	case errors.Is(err, service.ErrRoundActive):
		response.Error(c, http.StatusConflict, 13004, "讨论轮次进行中，暂不可修改")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "用户不存在")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, codeOptimisticLock, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, pkgerrors.ErrRoundBusy):
		response.Conflict(c, 16007, "该活动正在进行分组操作，请稍后重试")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
