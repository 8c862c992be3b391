package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/service"
	"github.com/dmgrok/unconference/pkg/response"
)

// maxImportFileSize 房间导入文件大小上限
const maxImportFileSize = 5 << 20

// RoomHandler 房间模块 HTTP 处理器
type RoomHandler struct {
	roomSvc service.RoomService
}

// NewRoomHandler 创建 RoomHandler
func NewRoomHandler(roomSvc service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

// CreateRoom 创建房间
// POST /api/v1/events/:id/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	var req dto.CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	room, err := h.roomSvc.Create(c.Request.Context(), eventID, &req, callerID, role)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}

	response.Created(c, room)
}

// ListRooms 活动房间列表
// GET /api/v1/events/:id/rooms?only_available=true
func (h *RoomHandler) ListRooms(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	var req dto.RoomListRequest
	if !bindQuery(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rooms, err := h.roomSvc.List(c.Request.Context(), eventID, &req, callerID, role)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}

	response.OK(c, gin.H{"list": rooms})
}

// GetRoom 获取房间详情
// GET /api/v1/rooms/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	id, ok := mustParam(c, "id", "房间ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	room, err := h.roomSvc.GetByID(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}

	response.OK(c, room)
}

// UpdateRoom 更新房间
// PUT /api/v1/rooms/:id
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	id, ok := mustParam(c, "id", "房间ID")
	if !ok {
		return
	}

	var req dto.UpdateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	room, err := h.roomSvc.Update(c.Request.Context(), id, &req, callerID, role)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}

	response.OK(c, room)
}

// DeleteRoom 删除房间
// DELETE /api/v1/rooms/:id
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	id, ok := mustParam(c, "id", "房间ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.roomSvc.Delete(c.Request.Context(), id, callerID, role); err != nil {
		h.handleRoomError(c, err)
		return
	}

	response.OK(c, nil)
}

// ImportRooms 从 Excel 批量导入房间（multipart 字段 file）
// POST /api/v1/events/:id/rooms/import
func (h *RoomHandler) ImportRooms(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, 15003, "请上传 Excel 文件（字段名 file）")
		return
	}
	if fileHeader.Size > maxImportFileSize {
		response.BadRequest(c, 15004, "文件大小不能超过 5MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, 15003, "无法读取上传文件")
		return
	}
	defer file.Close()

	rows, err := h.roomSvc.ParseImportFile(file)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}

	result, err := h.roomSvc.ImportRooms(c.Request.Context(), eventID, rows, callerID, role)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}

	response.OK(c, result)
}

// handleRoomError 统一处理房间模块业务错误
func (h *RoomHandler) handleRoomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 15001, "房间不存在")
	case errors.Is(err, service.ErrRoomNameExists):
		response.Conflict(c, 15002, "同一活动中房间名称已存在")
	case errors.Is(err, service.ErrImportNoData),
		errors.Is(err, service.ErrImportTooManyRows),
		errors.Is(err, service.ErrImportBadHeader):
		response.BadRequest(c, 15005, err.Error())
	case errors.Is(err, service.ErrImportUnreadable):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15006, "无法解析 Excel 文件", err.Error())
	default:
		handleCommonError(c, err)
	}
}
