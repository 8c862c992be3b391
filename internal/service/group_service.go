package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
	"github.com/dmgrok/unconference/pkg/metrics"
)

// ── 分组模块业务错误 ──

var (
	ErrNoRoomsConfigured = errors.New("活动尚未配置房间")
	ErrNotInGroup        = errors.New("当前分组中没有你的位置")
)

// GroupService 分组业务接口
type GroupService interface {
	// CreateGroups 按已选话题与可用房间生成分组，替换活动的当前分组
	CreateGroups(ctx context.Context, eventID, callerID, callerRole string) (*dto.CreateGroupsResponse, error)
	// Rebalance 解散人数不足的分组并重新安置
	Rebalance(ctx context.Context, eventID string, req *dto.RebalanceRequest, callerID, callerRole string) (*dto.RebalanceResponse, error)
	GetCurrent(ctx context.Context, eventID, callerID, callerRole string) (*dto.CurrentGroupsResponse, error)
	GetMyGroup(ctx context.Context, eventID, callerID, callerRole string) (*dto.MyGroupResponse, error)
	ListChangeLogs(ctx context.Context, eventID string, req *dto.ChangeLogListRequest, callerID, callerRole string) ([]dto.ChangeLogResponse, int64, error)
}

type groupService struct {
	repo     *repository.Repository
	settings *settingsResolver
	locker   RoundLocker
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewGroupService 创建 GroupService 实例
func NewGroupService(
	repo *repository.Repository,
	settings *settingsResolver,
	locker RoundLocker,
	m *metrics.Metrics,
	logger *zap.Logger,
) GroupService {
	return &groupService{
		repo:     repo,
		settings: settings,
		locker:   locker,
		metrics:  m,
		logger:   logger,
	}
}

// ═══════════════════════════════════════════════════════════
// CreateGroups — 生成分组
// ═══════════════════════════════════════════════════════════
//
// 流程：
//  1. 权限校验 + 活动级分组锁
//  2. 房间：活动无房间 → ErrNoRoomsConfigured；仅可用房间参与分配
//  3. 话题：已选或票数达到阈值
//  4. 运行分组引擎（纯计算）
//  5. 事务内归档旧快照并写入新快照（计算失败时不落库）

func (s *groupService) CreateGroups(ctx context.Context, eventID, callerID, callerRole string) (resp *dto.CreateGroupsResponse, err error) {
	start := time.Now()
	defer func() { s.observe(metrics.OpAssign, start, err) }()

	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. 房间
	allRooms, err := s.repo.Room.ListByEvent(ctx, eventID, false)
	if err != nil {
		s.logger.Error("查询房间失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	if len(allRooms) == 0 {
		return nil, ErrNoRoomsConfigured
	}
	rooms := make([]grouping.Room, 0, len(allRooms))
	for i := range allRooms {
		if allRooms[i].IsAvailable {
			rooms = append(rooms, toGroupingRoom(&allRooms[i]))
		}
	}

	// 2. 话题
	settings, err := s.settings.forEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	topics, err := s.loadTopics(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ready := make([]grouping.Topic, 0, len(topics))
	for _, t := range topics {
		if t.SelectedForRound || t.Votes() >= settings.MaxVotesPerTopic {
			ready = append(ready, t)
		}
	}

	// 3. 参与者目录
	var voters []string
	for i := range ready {
		voters = append(voters, ready[i].AllVoters()...)
	}
	directory, err := buildDirectory(ctx, s.repo, voters)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}

	// 4. 分组
	result, err := grouping.Assign(ready, rooms, grouping.NewResolver(directory, settings.GuestEmailDomain))
	if err != nil {
		return nil, err
	}

	// 5. 落库
	snapshot := &model.GroupSnapshot{
		EventID:     eventID,
		RoundNumber: event.RoundNumber,
		Status:      model.SnapshotStatusCurrent,
		Kind:        model.SnapshotKindAssignment,
		Warnings:    model.StringList(result.Warnings),
		Statistics: model.SnapshotStats{
			GroupCount:             result.GroupCount,
			TotalParticipants:      result.TotalParticipants,
			AssignedParticipants:   result.AssignedParticipants,
			WaitlistedParticipants: result.WaitlistedParticipants,
			RoomsUsed:              result.RoomsUsed,
			RoomsAvailable:         result.RoomsAvailable,
			UtilizationRate:        result.UtilizationRate,
		},
	}
	snapshot.CreatedBy = &callerID
	snapshot.UpdatedBy = &callerID

	if err := s.replaceSnapshot(ctx, snapshot, result.Groups, nil, callerID); err != nil {
		return nil, err
	}

	s.metrics.ObserveAssignment(result.AssignedParticipants, result.WaitlistedParticipants)
	s.logger.Info("分组完成",
		zap.String("event_id", eventID),
		zap.Int("groups", result.GroupCount),
		zap.Int("assigned", result.AssignedParticipants),
		zap.Int("waitlisted", result.WaitlistedParticipants))

	return &dto.CreateGroupsResponse{
		SnapshotID:       snapshot.SnapshotID,
		AssignmentResult: *result,
		CreatedAt:        formatTime(snapshot.CreatedAt),
	}, nil
}

// ═══════════════════════════════════════════════════════════
// Rebalance — 重新平衡
// ═══════════════════════════════════════════════════════════
//
// 无需调整时不写入新快照，SnapshotID 为空。

func (s *groupService) Rebalance(ctx context.Context, eventID string, req *dto.RebalanceRequest, callerID, callerRole string) (resp *dto.RebalanceResponse, err error) {
	start := time.Now()
	defer func() { s.observe(metrics.OpRebalance, start, err) }()

	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.repo.GroupSnapshot.GetCurrent(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouping.ErrNoExistingGroups
		}
		s.logger.Error("查询当前分组失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	settings, err := s.settings.forEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	minPerTable := settings.MinParticipantsPerTable
	if req != nil && req.MinParticipantsPerTable != nil {
		minPerTable = *req.MinParticipantsPerTable
	}

	topics, err := s.loadTopics(ctx, eventID)
	if err != nil {
		return nil, err
	}
	allRooms, err := s.repo.Room.ListByEvent(ctx, eventID, false)
	if err != nil {
		s.logger.Error("查询房间失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	rooms := make([]grouping.Room, 0, len(allRooms))
	for i := range allRooms {
		rooms = append(rooms, toGroupingRoom(&allRooms[i]))
	}

	result, err := grouping.Rebalance(snapshotGroups(current), topics, rooms, minPerTable)
	if err != nil {
		return nil, err
	}

	resp = &dto.RebalanceResponse{
		RebalanceResult:         *result,
		MinParticipantsPerTable: minPerTable,
	}
	if len(result.Changes) == 1 && result.Changes[0] == grouping.NoRebalanceNeeded {
		return resp, nil
	}

	now := time.Now()
	snapshot := &model.GroupSnapshot{
		EventID:                 eventID,
		RoundNumber:             current.RoundNumber,
		Status:                  model.SnapshotStatusCurrent,
		Kind:                    model.SnapshotKindRebalance,
		MinParticipantsPerTable: &minPerTable,
		Warnings:                model.StringList{},
		Statistics:              rebalanceStats(result),
		RebalancedAt:            &now,
	}
	snapshot.CreatedBy = &callerID
	snapshot.UpdatedBy = &callerID

	if err := s.replaceSnapshot(ctx, snapshot, result.RebalancedGroups, result.Changes, callerID); err != nil {
		return nil, err
	}

	overflow := false
	for _, g := range result.RebalancedGroups {
		if g.TopicID == "" && g.TopicTitle == grouping.OverflowTopicTitle {
			overflow = true
			break
		}
	}
	s.metrics.ObserveRebalance(countSeated(result.RebalancedGroups), result.Statistics.ParticipantsReassigned, overflow)
	s.logger.Info("重新平衡完成",
		zap.String("event_id", eventID),
		zap.Int("min_per_table", minPerTable),
		zap.Int("groups_before", result.Statistics.GroupsBefore),
		zap.Int("groups_after", result.Statistics.GroupsAfter),
		zap.Int("reassigned", result.Statistics.ParticipantsReassigned))

	resp.SnapshotID = snapshot.SnapshotID
	resp.RebalancedAt = formatTime(now)
	return resp, nil
}

// ────────────────────── GetCurrent ──────────────────────

func (s *groupService) GetCurrent(ctx context.Context, eventID, callerID, callerRole string) (*dto.CurrentGroupsResponse, error) {
	snapshot, err := s.currentSnapshot(ctx, eventID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	resp := &dto.CurrentGroupsResponse{
		SnapshotID:              snapshot.SnapshotID,
		EventID:                 snapshot.EventID,
		RoundNumber:             snapshot.RoundNumber,
		Kind:                    snapshot.Kind,
		MinParticipantsPerTable: snapshot.MinParticipantsPerTable,
		Warnings:                []string(snapshot.Warnings),
		Groups:                  snapshotGroups(snapshot),
		CreatedAt:               formatTime(snapshot.CreatedAt),
		RebalancedAt:            formatTimePtr(snapshot.RebalancedAt),
		Version:                 snapshot.Version,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if snapshot.CreatedBy != nil {
		resp.CreatedBy = *snapshot.CreatedBy
	}
	return resp, nil
}

// ────────────────────── GetMyGroup ──────────────────────

func (s *groupService) GetMyGroup(ctx context.Context, eventID, callerID, callerRole string) (*dto.MyGroupResponse, error) {
	snapshot, err := s.currentSnapshot(ctx, eventID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", callerID), zap.Error(err))
		return nil, err
	}

	for _, g := range snapshotGroups(snapshot) {
		for _, p := range g.Participants {
			if strings.EqualFold(p.Email, user.Email) {
				return &dto.MyGroupResponse{Group: g}, nil
			}
		}
		for _, p := range g.Waitlist {
			if strings.EqualFold(p.Email, user.Email) {
				return &dto.MyGroupResponse{Waitlisted: true, Group: g}, nil
			}
		}
	}
	return nil, ErrNotInGroup
}

// ────────────────────── ListChangeLogs ──────────────────────

func (s *groupService) ListChangeLogs(ctx context.Context, eventID string, req *dto.ChangeLogListRequest, callerID, callerRole string) ([]dto.ChangeLogResponse, int64, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, 0, err
	}
	if err := requireEventOrganizer(event, callerID, callerRole); err != nil {
		return nil, 0, err
	}

	logs, total, err := s.repo.GroupChangeLog.ListByEvent(ctx, eventID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询分组变更记录失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ChangeLogResponse, 0, len(logs))
	for _, l := range logs {
		result = append(result, dto.ChangeLogResponse{
			ID:         l.ChangeLogID,
			SnapshotID: l.SnapshotID,
			Seq:        l.Seq,
			Message:    l.Message,
			OperatorID: l.OperatorID,
			CreatedAt:  formatTime(l.CreatedAt),
		})
	}
	return result, total, nil
}

// ── 内部辅助方法 ──

func (s *groupService) currentSnapshot(ctx context.Context, eventID, callerID, callerRole string) (*model.GroupSnapshot, error) {
	event, err := loadEvent(ctx, s.repo, s.logger, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(ctx, s.repo, event, callerID, callerRole); err != nil {
		return nil, err
	}

	snapshot, err := s.repo.GroupSnapshot.GetCurrent(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouping.ErrNoExistingGroups
		}
		s.logger.Error("查询当前分组失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	return snapshot, nil
}

func (s *groupService) loadTopics(ctx context.Context, eventID string) ([]grouping.Topic, error) {
	topics, err := s.repo.Topic.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("查询话题失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	out := make([]grouping.Topic, 0, len(topics))
	for i := range topics {
		out = append(out, toGroupingTopic(&topics[i]))
	}
	return out, nil
}

// replaceSnapshot 事务内：归档当前快照（乐观锁）→ 写入新快照、分组明细与变更记录
// 并发写入时归档失败返回 pkgerrors.ErrOptimisticLock
func (s *groupService) replaceSnapshot(ctx context.Context, snapshot *model.GroupSnapshot, groups []grouping.Group, changes []string, operatorID string) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()
	txRepo := s.repo.WithTx(tx)

	rollback := func(msg string, err error) error {
		if tx != nil {
			tx.Rollback()
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error(msg, zap.String("event_id", snapshot.EventID), zap.Error(err))
		}
		return err
	}

	current, err := txRepo.GroupSnapshot.GetCurrent(ctx, snapshot.EventID)
	switch {
	case err == nil:
		if err := txRepo.GroupSnapshot.Archive(ctx, current, operatorID); err != nil {
			return rollback("归档分组快照失败", err)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return rollback("查询当前分组失败", err)
	}

	if err := txRepo.GroupSnapshot.Create(ctx, snapshot); err != nil {
		return rollback("写入分组快照失败", err)
	}

	assignments := toAssignments(snapshot.SnapshotID, groups)
	if len(assignments) > 0 {
		if err := txRepo.GroupAssignment.BatchCreate(ctx, assignments); err != nil {
			return rollback("写入分组明细失败", err)
		}
	}
	snapshot.Assignments = assignments

	if len(changes) > 0 {
		logs := make([]model.GroupChangeLog, 0, len(changes))
		for i, msg := range changes {
			logs = append(logs, model.GroupChangeLog{
				SnapshotID: snapshot.SnapshotID,
				EventID:    snapshot.EventID,
				Seq:        i + 1,
				Message:    msg,
				OperatorID: operatorID,
			})
		}
		if err := txRepo.GroupChangeLog.BatchCreate(ctx, logs); err != nil {
			return rollback("写入分组变更记录失败", err)
		}
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}

// observe 记录一次分组操作的耗时与结果
func (s *groupService) observe(op string, start time.Time, err error) {
	s.metrics.ObserveGroupingRun(op, runResult(err), time.Since(start))
}

func runResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, pkgerrors.ErrRoundBusy), errors.Is(err, pkgerrors.ErrOptimisticLock):
		return metrics.ResultConflict
	case errors.Is(err, grouping.ErrNoRoomsAvailable),
		errors.Is(err, grouping.ErrNoTopicsReady),
		errors.Is(err, grouping.ErrNoExistingGroups),
		errors.Is(err, grouping.ErrInvalidMinParticipants),
		errors.Is(err, ErrNoRoomsConfigured),
		errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrNoPermission):
		return metrics.ResultCallerError
	default:
		return metrics.ResultError
	}
}

func rebalanceStats(r *grouping.RebalanceResult) model.SnapshotStats {
	assigned, waitlisted, roomsUsed := 0, 0, 0
	for _, g := range r.RebalancedGroups {
		assigned += len(g.Participants)
		waitlisted += len(g.Waitlist)
		if g.HasRoom() {
			roomsUsed++
		}
	}
	return model.SnapshotStats{
		GroupCount:             len(r.RebalancedGroups),
		TotalParticipants:      assigned + waitlisted,
		AssignedParticipants:   assigned,
		WaitlistedParticipants: waitlisted,
		RoomsUsed:              roomsUsed,
		GroupsBefore:           r.Statistics.GroupsBefore,
		GroupsAfter:            r.Statistics.GroupsAfter,
		ParticipantsReassigned: r.Statistics.ParticipantsReassigned,
	}
}

func countSeated(groups []grouping.Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Participants)
	}
	return n
}

// ── 快照 ↔ 分组引擎 ──

func snapshotGroups(s *model.GroupSnapshot) []grouping.Group {
	groups := make([]grouping.Group, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		g := grouping.Group{
			TopicTitle:     a.TopicTitle,
			GroupNumber:    a.GroupNumber,
			RoomName:       a.RoomName,
			RoomCapacity:   a.RoomCapacity,
			RoomLocation:   a.RoomLocation,
			Participants:   toParticipants(a.Participants),
			Waitlist:       toParticipants(a.Waitlist),
			IsOvercapacity: a.IsOvercapacity,
			ActualCapacity: a.ActualCapacity,
		}
		if a.TopicID != nil {
			g.TopicID = *a.TopicID
		}
		if a.RoomID != nil {
			g.RoomID = *a.RoomID
		}
		groups = append(groups, g)
	}
	return groups
}

func toAssignments(snapshotID string, groups []grouping.Group) []model.GroupAssignment {
	out := make([]model.GroupAssignment, 0, len(groups))
	for _, g := range groups {
		a := model.GroupAssignment{
			SnapshotID:     snapshotID,
			GroupNumber:    g.GroupNumber,
			TopicTitle:     g.TopicTitle,
			RoomName:       g.RoomName,
			RoomCapacity:   g.RoomCapacity,
			RoomLocation:   g.RoomLocation,
			Participants:   toMembers(g.Participants),
			Waitlist:       toMembers(g.Waitlist),
			IsOvercapacity: g.IsOvercapacity,
			ActualCapacity: g.ActualCapacity,
		}
		if g.TopicID != "" {
			topicID := g.TopicID
			a.TopicID = &topicID
		}
		if g.RoomID != "" {
			roomID := g.RoomID
			a.RoomID = &roomID
		}
		out = append(out, a)
	}
	return out
}

func toParticipants(members model.MemberList) []grouping.Participant {
	out := make([]grouping.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, grouping.Participant{Name: m.Name, Email: m.Email, Role: m.Role})
	}
	return out
}

func toMembers(ps []grouping.Participant) model.MemberList {
	out := make(model.MemberList, 0, len(ps))
	for _, p := range ps {
		out = append(out, model.GroupMember{Name: p.Name, Email: p.Email, Role: p.Role})
	}
	return out
}
