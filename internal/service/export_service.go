package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportGroups 导出活动当前分组名单为 Excel
	ExportGroups(ctx context.Context, eventID, callerID, callerRole string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportGroups — 导出分组名单
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "分组名单"：每位参与者一行（先入座，后候补），按组号排序
//   - Sheet "概览"：每组一行，含房间与人数
//   - 有警告时追加 Sheet "警告"

func (s *exportService) ExportGroups(ctx context.Context, eventID, callerID, callerRole string) (*bytes.Buffer, string, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, "", err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, "", err
	}

	snapshot, err := s.repo.GroupSnapshot.GetCurrent(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", grouping.ErrNoExistingGroups
		}
		s.logger.Error("查询当前分组失败", zap.Error(err))
		return nil, "", err
	}
	groups := snapshotGroups(snapshot)

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 1. 分组名单
	roster := "分组名单"
	idx, _ := f.NewSheet(roster)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(roster, "A1", fmt.Sprintf("%s 第%d轮分组名单", event.Name, snapshot.RoundNumber))
	f.MergeCell(roster, "A1", "G1")
	f.SetCellStyle(roster, "A1", "A1", headerStyle)

	headers := []string{"组号", "话题", "房间", "位置", "姓名", "邮箱", "状态"}
	for i, h := range headers {
		f.SetCellValue(roster, cell(colName(i), 2), h)
	}
	f.SetCellStyle(roster, "A2", cell(colName(len(headers)-1), 2), headerStyle)
	for i, width := range []float64{8, 32, 16, 16, 18, 30, 10} {
		f.SetColWidth(roster, colName(i), colName(i), width)
	}

	row := 3
	writeMember := func(g grouping.Group, p grouping.Participant, status string) {
		room := g.RoomName
		if !g.HasRoom() {
			room = "未分配"
		}
		values := []interface{}{g.GroupNumber, g.TopicTitle, room, g.RoomLocation, p.Name, p.Email, status}
		for i, v := range values {
			f.SetCellValue(roster, cell(colName(i), row), v)
		}
		row++
	}
	for _, g := range groups {
		for _, p := range g.Participants {
			writeMember(g, p, "已入座")
		}
		for _, p := range g.Waitlist {
			writeMember(g, p, "候补")
		}
	}

	// 2. 概览
	summary := "概览"
	f.NewSheet(summary)
	for i, h := range []string{"组号", "话题", "房间", "容量", "入座", "候补"} {
		f.SetCellValue(summary, cell(colName(i), 1), h)
	}
	f.SetCellStyle(summary, "A1", "F1", headerStyle)
	f.SetColWidth(summary, "B", "B", 32)
	for i, g := range groups {
		r := i + 2
		f.SetCellValue(summary, cell("A", r), g.GroupNumber)
		f.SetCellValue(summary, cell("B", r), g.TopicTitle)
		if g.HasRoom() {
			f.SetCellValue(summary, cell("C", r), g.RoomName)
			f.SetCellValue(summary, cell("D", r), g.RoomCapacity)
		} else {
			f.SetCellValue(summary, cell("C", r), "未分配")
			f.SetCellValue(summary, cell("D", r), "-")
		}
		f.SetCellValue(summary, cell("E", r), len(g.Participants))
		f.SetCellValue(summary, cell("F", r), len(g.Waitlist))
	}

	// 3. 警告
	if len(snapshot.Warnings) > 0 {
		warnings := "警告"
		f.NewSheet(warnings)
		f.SetColWidth(warnings, "A", "A", 100)
		for i, w := range snapshot.Warnings {
			f.SetCellValue(warnings, cell("A", i+1), w)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("分组名单_%s_第%d轮.xlsx", event.Name, snapshot.RoundNumber)
	return buf, filename, nil
}

// ── 辅助函数 ──

// colName 0 基列号 → Excel 列名
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
