package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/service"
	"github.com/dmgrok/unconference/pkg/response"
)

// EventHandler 活动模块 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// CreateEvent 创建活动（组织者/管理员）
// POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.Created(c, event)
}

// ListEvents 活动列表（管理员看全部，其余用户看自己组织或加入的）
// GET /api/v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	var req dto.EventListRequest
	if !bindQuery(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	events, total, err := h.eventSvc.List(c.Request.Context(), &req, callerID, role)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OKPage(c, events, total, req.GetPage(), req.GetPageSize())
}

// GetEvent 获取活动详情
// GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.GetByID(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// UpdateEvent 更新活动信息与分组设置
// PUT /api/v1/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Update(c.Request.Context(), id, &req, callerID, role)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// DeleteEvent 删除活动
// DELETE /api/v1/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	id, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.eventSvc.Delete(c.Request.Context(), id, callerID, role); err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, nil)
}

// JoinEvent 凭加入码加入活动
// POST /api/v1/events/join
func (h *EventHandler) JoinEvent(c *gin.Context) {
	var req dto.JoinEventRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Join(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// StartRound 开启讨论轮次
// POST /api/v1/events/:id/round/start
func (h *EventHandler) StartRound(c *gin.Context) {
	h.roundAction(c, h.eventSvc.StartRound)
}

// EndRound 结束讨论轮次
// POST /api/v1/events/:id/round/end
func (h *EventHandler) EndRound(c *gin.Context) {
	h.roundAction(c, h.eventSvc.EndRound)
}

func (h *EventHandler) roundAction(c *gin.Context, action func(ctx context.Context, id, callerID, callerRole string) (*dto.EventResponse, error)) {
	id, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	event, err := action(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// handleEventError 统一处理活动模块业务错误
func (h *EventHandler) handleEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoundNotActive):
		response.BadRequest(c, 13005, "当前没有进行中的讨论轮次")
	case errors.Is(err, service.ErrInvalidJoinCode):
		response.NotFound(c, 13006, "加入码无效")
	case errors.Is(err, service.ErrJoinCodeExhaust):
		response.Error(c, http.StatusServiceUnavailable, 13007, "生成加入码失败，请重试")
	default:
		handleCommonError(c, err)
	}
}
