package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/service"
	"github.com/dmgrok/unconference/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportGroups 导出当前分组名单
// GET /api/v1/events/:id/groups/export
func (h *ExportHandler) ExportGroups(c *gin.Context) {
	eventID, ok := mustParam(c, "id", "活动ID")
	if !ok {
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportGroups(c.Request.Context(), eventID, callerID, role)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, response.XLSXContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grouping.ErrNoExistingGroups):
		response.NotFound(c, 17001, "当前没有可导出的分组")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleCommonError(c, err)
	}
}
