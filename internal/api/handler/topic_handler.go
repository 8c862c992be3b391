package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/service"
	"github.com/dmgrok/unconference/pkg/response"
)

// TopicHandler 话题模块 HTTP 处理器
type TopicHandler struct {
	topicSvc service.TopicService
}

// NewTopicHandler 创建 TopicHandler
func NewTopicHandler(topicSvc service.TopicService) *TopicHandler {
	return &TopicHandler{topicSvc: topicSvc}
}

// CreateTopic 提交话题
// POST /api/v1/events/:id/topics
func (h *TopicHandler) CreateTopic(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	var req dto.CreateTopicRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.Create(c.Request.Context(), eventID, &req, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.Created(c, topic)
}

// ListTopics 活动话题列表（按票数降序）
// GET /api/v1/events/:id/topics
func (h *TopicHandler) ListTopics(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topics, err := h.topicSvc.List(c.Request.Context(), eventID, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, gin.H{"list": topics})
}

// GetTopic 获取话题详情
// GET /api/v1/topics/:id
func (h *TopicHandler) GetTopic(c *gin.Context) {
	id, ok := mustParam(c, "id", "话题ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.GetByID(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, topic)
}

// UpdateTopic 更新话题（作者或组织者）
// PUT /api/v1/topics/:id
func (h *TopicHandler) UpdateTopic(c *gin.Context) {
	id, ok := mustParam(c, "id", "话题ID")
	if !ok {
		return
	}

	var req dto.UpdateTopicRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.Update(c.Request.Context(), id, &req, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, topic)
}

// DeleteTopic 删除话题
// DELETE /api/v1/topics/:id
func (h *TopicHandler) DeleteTopic(c *gin.Context) {
	id, ok := mustParam(c, "id", "话题ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.topicSvc.Delete(c.Request.Context(), id, callerID, role); err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, nil)
}

// Vote 为话题投票（不区分志愿）
// POST /api/v1/topics/:id/vote
func (h *TopicHandler) Vote(c *gin.Context) {
	id, ok := mustParam(c, "id", "话题ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.Vote(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, topic)
}

// Unvote 撤销对话题的投票
// DELETE /api/v1/topics/:id/vote
func (h *TopicHandler) Unvote(c *gin.Context) {
	id, ok := mustParam(c, "id", "话题ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.topicSvc.Unvote(c.Request.Context(), id, callerID, role); err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, nil)
}

// SetPreferences 设置第一/第二志愿
// PUT /api/v1/events/:id/preferences
func (h *TopicHandler) SetPreferences(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	var req dto.SetPreferencesRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	prefs, err := h.topicSvc.SetPreferences(c.Request.Context(), eventID, &req, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, prefs)
}

// MyPreferences 当前用户在活动中的志愿与投票
// GET /api/v1/events/:id/preferences
func (h *TopicHandler) MyPreferences(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	prefs, err := h.topicSvc.MyPreferences(c.Request.Context(), eventID, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, prefs)
}

// ClearVotes 清除当前用户在活动中的全部投票与志愿
// DELETE /api/v1/events/:id/votes
func (h *TopicHandler) ClearVotes(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.topicSvc.ClearVotes(c.Request.Context(), eventID, callerID, role); err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, nil)
}

// SelectTopic 组织者手动选入/移出本轮
// PUT /api/v1/topics/:id/selection
func (h *TopicHandler) SelectTopic(c *gin.Context) {
	id, ok := mustParam(c, "id", "话题ID")
	if !ok {
		return
	}

	var req dto.SelectTopicRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.Select(c.Request.Context(), id, &req, callerID, role)
	if err != nil {
		h.handleTopicError(c, err)
		return
	}

	response.OK(c, topic)
}

// handleTopicError 统一处理话题模块业务错误
func (h *TopicHandler) handleTopicError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTopicNotFound):
		response.NotFound(c, 14001, "话题不存在")
	case errors.Is(err, service.ErrAlreadyVoted):
		response.Conflict(c, 14002, "已为该话题投票")
	case errors.Is(err, service.ErrVoteNotFound):
		response.NotFound(c, 14003, "尚未为该话题投票")
	case errors.Is(err, service.ErrPreferenceEmpty):
		response.BadRequest(c, 14004, "至少需要指定一个志愿")
	case errors.Is(err, service.ErrPreferenceDuplicate):
		response.BadRequest(c, 14005, "第一志愿与第二志愿不能相同")
	default:
		handleCommonError(c, err)
	}
}
