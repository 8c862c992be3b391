package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/service"
	"github.com/dmgrok/unconference/pkg/response"
)

// GroupHandler 分组模块 HTTP 处理器
type GroupHandler struct {
	groupSvc service.GroupService
}

// NewGroupHandler 创建 GroupHandler
func NewGroupHandler(groupSvc service.GroupService) *GroupHandler {
	return &GroupHandler{groupSvc: groupSvc}
}

// CreateGroups 按已选话题生成分组（替换当前分组）
// POST /api/v1/events/:id/groups
func (h *GroupHandler) CreateGroups(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.groupSvc.CreateGroups(c.Request.Context(), eventID, callerID, role)
	if err != nil {
		h.handleGroupError(c, err)
		return
	}

	response.Created(c, result)
}

// Rebalance 重新平衡人数不足的分组
// POST /api/v1/events/:id/groups/rebalance
func (h *GroupHandler) Rebalance(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	// 请求体可省略
	var req dto.RebalanceRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.groupSvc.Rebalance(c.Request.Context(), eventID, &req, callerID, role)
	if err != nil {
		h.handleGroupError(c, err)
		return
	}

	response.OK(c, result)
}

// GetCurrentGroups 当前分组
// GET /api/v1/events/:id/groups
func (h *GroupHandler) GetCurrentGroups(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.groupSvc.GetCurrent(c.Request.Context(), eventID, callerID, role)
	if err != nil {
		h.handleGroupError(c, err)
		return
	}

	response.OK(c, result)
}

// GetMyGroup 当前用户所在分组
// GET /api/v1/events/:id/groups/me
func (h *GroupHandler) GetMyGroup(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.groupSvc.GetMyGroup(c.Request.Context(), eventID, callerID, role)
	if err != nil {
		h.handleGroupError(c, err)
		return
	}

	response.OK(c, result)
}

// ListChangeLogs 分组变更日志
// GET /api/v1/events/:id/groups/change-logs
func (h *GroupHandler) ListChangeLogs(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	var req dto.ChangeLogListRequest
	if !bindQuery(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	logs, total, err := h.groupSvc.ListChangeLogs(c.Request.Context(), eventID, &req, callerID, role)
	if err != nil {
		h.handleGroupError(c, err)
		return
	}

	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}

// handleGroupError 统一处理分组模块业务错误
func (h *GroupHandler) handleGroupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grouping.ErrNoRoomsAvailable):
		response.BadRequest(c, 16001, "没有可用房间")
	case errors.Is(err, grouping.ErrNoTopicsReady):
		response.BadRequest(c, 16002, "没有可成组的话题")
	case errors.Is(err, grouping.ErrNoExistingGroups):
		response.NotFound(c, 16003, "当前没有分组")
	case errors.Is(err, grouping.ErrInvalidMinParticipants):
		response.BadRequest(c, 16004, "min_participants_per_table 必须在 3-15 之间")
	case errors.Is(err, service.ErrNoRoomsConfigured):
		response.BadRequest(c, 16005, "活动尚未配置房间")
	case errors.Is(err, service.ErrNotInGroup):
		response.NotFound(c, 16006, "当前分组中没有你的位置")
	default:
		handleCommonError(c, err)
	}
}
