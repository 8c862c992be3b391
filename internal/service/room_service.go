package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
)

// ── 房间模块业务错误 ──

var (
	ErrRoomNotFound   = errors.New("房间不存在")
	ErrRoomNameExists = errors.New("同一活动中房间名称已存在")
)

// RoomService 房间业务接口
type RoomService interface {
	Create(ctx context.Context, eventID string, req *dto.CreateRoomRequest, callerID, callerRole string) (*dto.RoomResponse, error)
	GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.RoomResponse, error)
	List(ctx context.Context, eventID string, req *dto.RoomListRequest, callerID, callerRole string) ([]dto.RoomResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateRoomRequest, callerID, callerRole string) (*dto.RoomResponse, error)
	Delete(ctx context.Context, id, callerID, callerRole string) error
	ParseImportFile(reader io.Reader) ([]ImportRoomRow, error)
	ImportRooms(ctx context.Context, eventID string, rows []ImportRoomRow, callerID, callerRole string) (*dto.ImportRoomResponse, error)
}

// ImportRoomRow Excel 导入解析后的单行数据
type ImportRoomRow struct {
	Row         int
	Name        string
	Capacity    string
	Location    string
	Description string
}

type roomService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(repo *repository.Repository, logger *zap.Logger) RoomService {
	return &roomService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *roomService) Create(ctx context.Context, eventID string, req *dto.CreateRoomRequest, callerID, callerRole string) (*dto.RoomResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := s.checkNameUnique(ctx, eventID, name, ""); err != nil {
		return nil, err
	}

	room := &model.Room{
		EventID:     eventID,
		Name:        name,
		Capacity:    req.Capacity,
		Location:    req.Location,
		Description: req.Description,
		IsAvailable: true,
	}
	if req.IsAvailable != nil {
		room.IsAvailable = *req.IsAvailable
	}
	room.CreatedBy = &callerID
	room.UpdatedBy = &callerID

	if err := s.repo.Room.Create(ctx, room); err != nil {
		s.logger.Error("创建房间失败", zap.Error(err))
		return nil, err
	}

	return toRoomResponse(room), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *roomService) GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.RoomResponse, error) {
	room, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}
	return toRoomResponse(room), nil
}

// ────────────────────── List ──────────────────────

func (s *roomService) List(ctx context.Context, eventID string, req *dto.RoomListRequest, callerID, callerRole string) ([]dto.RoomResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}

	rooms, err := s.repo.Room.ListByEvent(ctx, eventID, req.OnlyAvailable)
	if err != nil {
		s.logger.Error("列出房间失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		result = append(result, *toRoomResponse(&rooms[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *roomService) Update(ctx context.Context, id string, req *dto.UpdateRoomRequest, callerID, callerRole string) (*dto.RoomResponse, error) {
	room, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := s.checkNameUnique(ctx, room.EventID, name, id); err != nil {
			return nil, err
		}
		room.Name = name
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Location != nil {
		room.Location = *req.Location
	}
	if req.Description != nil {
		room.Description = *req.Description
	}
	if req.IsAvailable != nil {
		room.IsAvailable = *req.IsAvailable
	}
	room.UpdatedBy = &callerID

	if err := s.repo.Room.Update(ctx, room); err != nil {
		s.logger.Error("更新房间失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toRoomResponse(room), nil
}

// ────────────────────── Delete ──────────────────────

func (s *roomService) Delete(ctx context.Context, id, callerID, callerRole string) error {
	_, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return err
	}

	if err := s.repo.Room.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除房间失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ParseImportFile ──────────────────────

const maxImportRows = 500

var (
	ErrImportNoData      = errors.New("Excel文件无数据行（第一行为表头）")
	ErrImportTooManyRows = fmt.Errorf("数据行数超过上限 %d 行", maxImportRows)
	ErrImportBadHeader   = errors.New("Excel表头缺少必要列（名称/容量）")
	ErrImportUnreadable  = errors.New("无法解析Excel文件")
)

// ParseImportFile 解析房间导入 Excel：表头需包含 名称/容量，可选 位置/说明
func (s *roomService) ParseImportFile(reader io.Reader) ([]ImportRoomRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportUnreadable, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取工作表失败: %v", ErrImportUnreadable, err)
	}

	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	colIndex := parseRoomHeader(excelRows[0])
	if colIndex["name"] < 0 || colIndex["capacity"] < 0 {
		return nil, ErrImportBadHeader
	}

	cellAt := func(row []string, key string) string {
		if idx := colIndex[key]; idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []ImportRoomRow
	for i := 1; i < len(excelRows); i++ {
		item := ImportRoomRow{
			Row:         i + 1,
			Name:        cellAt(excelRows[i], "name"),
			Capacity:    cellAt(excelRows[i], "capacity"),
			Location:    cellAt(excelRows[i], "location"),
			Description: cellAt(excelRows[i], "description"),
		}

		// 跳过全空行
		if item.Name == "" && item.Capacity == "" && item.Location == "" && item.Description == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// parseRoomHeader 解析 Excel 表头，返回列名 -> 列索引映射
func parseRoomHeader(header []string) map[string]int {
	idx := map[string]int{
		"name":        -1,
		"capacity":    -1,
		"location":    -1,
		"description": -1,
	}
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		switch {
		case lower == "名称" || lower == "name":
			idx["name"] = i
		case lower == "容量" || lower == "capacity":
			idx["capacity"] = i
		case lower == "位置" || lower == "location":
			idx["location"] = i
		case lower == "说明" || lower == "description":
			idx["description"] = i
		}
	}
	return idx
}

// ────────────────────── ImportRooms ──────────────────────

func (s *roomService) ImportRooms(ctx context.Context, eventID string, rows []ImportRoomRow, callerID, callerRole string) (*dto.ImportRoomResponse, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	resp := &dto.ImportRoomResponse{Total: len(rows)}
	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportRowError{Row: row, Reason: reason})
	}

	// 第一阶段：数据预校验（不接触数据库写操作）
	var valid []model.Room
	seen := make(map[string]bool)
	for _, row := range rows {
		if row.Name == "" || row.Capacity == "" {
			fail(row.Row, "必填字段为空")
			continue
		}

		capacity, err := strconv.Atoi(row.Capacity)
		if err != nil || capacity <= 0 {
			fail(row.Row, fmt.Sprintf("容量无效: %s", row.Capacity))
			continue
		}

		key := strings.ToLower(row.Name)
		if seen[key] {
			fail(row.Row, fmt.Sprintf("文件内房间名称重复: %s", row.Name))
			continue
		}
		exists, err := s.repo.Room.ExistsByName(ctx, eventID, row.Name, "")
		if err != nil {
			s.logger.Error("检查房间名称失败", zap.Error(err))
			return nil, err
		}
		if exists {
			fail(row.Row, fmt.Sprintf("房间已存在: %s", row.Name))
			continue
		}
		seen[key] = true

		room := model.Room{
			EventID:     eventID,
			Name:        row.Name,
			Capacity:    capacity,
			Location:    row.Location,
			Description: row.Description,
			IsAvailable: true,
		}
		room.CreatedBy = &callerID
		room.UpdatedBy = &callerID
		valid = append(valid, room)
	}

	// 第二阶段：批量写入，任一失败则全部回滚
	if len(valid) > 0 {
		tx, err := s.repo.BeginTx(ctx)
		if err != nil {
			s.logger.Error("开启事务失败", zap.Error(err))
			return nil, err
		}
		defer func() {
			if r := recover(); r != nil {
				if tx != nil {
					tx.Rollback()
				}
				panic(r)
			}
		}()

		if err := s.repo.WithTx(tx).Room.BatchCreate(ctx, valid); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("导入房间写入失败，事务回滚", zap.Error(err))
			return nil, fmt.Errorf("写入数据库失败，已回滚全部导入: %w", err)
		}

		if tx != nil {
			if err := tx.Commit().Error; err != nil {
				s.logger.Error("提交事务失败", zap.Error(err))
				return nil, err
			}
		}
		resp.Success = len(valid)
	}

	return resp, nil
}

// ── 内部辅助方法 ──

func (s *roomService) loadWithEvent(ctx context.Context, id string) (*model.Room, *model.Event, error) {
	room, err := s.repo.Room.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		s.logger.Error("查询房间失败", zap.String("id", id), zap.Error(err))
		return nil, nil, err
	}
	event, err := loadEvent(ctx, s.repo, s.logger, room.EventID)
	if err != nil {
		return nil, nil, err
	}
	return room, event, nil
}

func (s *roomService) checkNameUnique(ctx context.Context, eventID, name, excludeID string) error {
	exists, err := s.repo.Room.ExistsByName(ctx, eventID, name, excludeID)
	if err != nil {
		s.logger.Error("检查房间名称失败", zap.Error(err))
		return err
	}
	if exists {
		return ErrRoomNameExists
	}
	return nil
}

func toRoomResponse(r *model.Room) *dto.RoomResponse {
	return &dto.RoomResponse{
		ID:          r.RoomID,
		EventID:     r.EventID,
		Name:        r.Name,
		Capacity:    r.Capacity,
		Location:    r.Location,
		Description: r.Description,
		IsAvailable: r.IsAvailable,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}
