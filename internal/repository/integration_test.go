//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
	"github.com/dmgrok/unconference/pkg/database"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=unconference_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 使用与生产相同的迁移脚本建表
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupTestEvent 创建组织者与活动并返回清理函数
func setupTestEvent(t *testing.T) (organizer *model.User, event *model.Event, cleanup func()) {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().UnixNano()

	organizer = &model.User{
		Name:         "测试组织者",
		Email:        fmt.Sprintf("organizer%d@example.com", suffix),
		PasswordHash: "$2a$10$placeholder",
		Role:         model.RoleOrganizer,
	}
	if err := testDB.WithContext(ctx).Create(organizer).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}

	event = &model.Event{
		Name:        fmt.Sprintf("测试活动-%d", suffix),
		JoinCode:    fmt.Sprintf("T%05d", suffix%100000),
		Status:      model.EventStatusOpen,
		OrganizerID: organizer.UserID,
	}
	if err := testDB.WithContext(ctx).Create(event).Error; err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}

	cleanup = func() {
		testDB.Exec("DELETE FROM group_change_logs WHERE event_id = ?", event.EventID)
		testDB.Exec("DELETE FROM group_assignments WHERE snapshot_id IN (SELECT snapshot_id FROM group_snapshots WHERE event_id = ?)", event.EventID)
		testDB.Exec("DELETE FROM group_snapshots WHERE event_id = ?", event.EventID)
		testDB.Exec("DELETE FROM event_participants WHERE event_id = ?", event.EventID)
		testDB.Unscoped().Where("event_id = ?", event.EventID).Delete(&model.Event{})
		testDB.Unscoped().Where("user_id = ?", organizer.UserID).Delete(&model.User{})
	}
	return
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	_, event, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	txRepo := repo.WithTx(tx)

	snap := &model.GroupSnapshot{
		EventID: event.EventID,
		Status:  model.SnapshotStatusCurrent,
		Kind:    model.SnapshotKindAssignment,
	}
	if err := txRepo.GroupSnapshot.Create(ctx, snap); err != nil {
		tx.Rollback()
		t.Fatalf("事务内创建快照失败: %v", err)
	}

	tx.Rollback()

	if _, err := repo.GroupSnapshot.GetCurrent(ctx, event.EventID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望回滚后查不到快照，实际: %v", err)
	}
}

func TestTransaction_Commit_SnapshotWithAssignments(t *testing.T) {
	organizer, event, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	txRepo := repo.WithTx(tx)

	snap := &model.GroupSnapshot{
		EventID:     event.EventID,
		RoundNumber: 1,
		Status:      model.SnapshotStatusCurrent,
		Kind:        model.SnapshotKindAssignment,
		Warnings:    model.StringList{"讨论室不足"},
	}
	if err := txRepo.GroupSnapshot.Create(ctx, snap); err != nil {
		tx.Rollback()
		t.Fatalf("创建快照失败: %v", err)
	}

	assignments := []model.GroupAssignment{
		{
			SnapshotID:   snap.SnapshotID,
			GroupNumber:  2,
			TopicTitle:   "Go 泛型",
			Participants: model.MemberList{{Name: "Ada", Email: "ada@example.com"}},
		},
		{
			SnapshotID:  snap.SnapshotID,
			GroupNumber: 1,
			TopicTitle:  "Kubernetes",
			Participants: model.MemberList{
				{Name: "Bob", Email: "bob@example.com"},
				{Name: "Cy", Email: "cy@example.com"},
			},
			Waitlist: model.MemberList{{Name: "Dee", Email: "dee@example.com"}},
		},
	}
	if err := txRepo.GroupAssignment.BatchCreate(ctx, assignments); err != nil {
		tx.Rollback()
		t.Fatalf("写入分组失败: %v", err)
	}
	if err := txRepo.GroupChangeLog.BatchCreate(ctx, []model.GroupChangeLog{
		{SnapshotID: snap.SnapshotID, EventID: event.EventID, Seq: 1, Message: "创建分组", OperatorID: organizer.UserID},
	}); err != nil {
		tx.Rollback()
		t.Fatalf("写入变更日志失败: %v", err)
	}

	if err := tx.Commit().Error; err != nil {
		t.Fatalf("Commit 失败: %v", err)
	}

	found, err := repo.GroupSnapshot.GetCurrent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("提交后查询快照失败: %v", err)
	}
	if len(found.Assignments) != 2 || found.Assignments[0].GroupNumber != 1 {
		t.Fatalf("分组应按编号排序，实际: %+v", found.Assignments)
	}
	if len(found.Assignments[0].Participants) != 2 || len(found.Assignments[0].Waitlist) != 1 {
		t.Errorf("JSONB 成员列表读写不一致: %+v", found.Assignments[0])
	}
	if len(found.Assignments[1].Waitlist) != 0 {
		t.Error("未设置的候补名单应读出为空列表")
	}
	if len(found.Warnings) != 1 {
		t.Errorf("期望 1 条警告，实际: %v", found.Warnings)
	}

	logs, total, err := repo.GroupChangeLog.ListByEvent(ctx, event.EventID, 0, 10)
	if err != nil {
		t.Fatalf("查询变更日志失败: %v", err)
	}
	if total != 1 || logs[0].Message != "创建分组" {
		t.Errorf("变更日志不符: total=%d", total)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Current Snapshot Uniqueness
// ═══════════════════════════════════════════════════════════

func TestGroupSnapshot_SingleCurrentPerEvent(t *testing.T) {
	organizer, event, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	first := &model.GroupSnapshot{EventID: event.EventID, Status: model.SnapshotStatusCurrent, Kind: model.SnapshotKindAssignment}
	if err := repo.GroupSnapshot.Create(ctx, first); err != nil {
		t.Fatalf("创建快照失败: %v", err)
	}

	second := &model.GroupSnapshot{EventID: event.EventID, Status: model.SnapshotStatusCurrent, Kind: model.SnapshotKindRebalance}
	if err := repo.GroupSnapshot.Create(ctx, second); err == nil {
		t.Fatal("同一活动不应存在两个 current 快照")
	}

	current, err := repo.GroupSnapshot.GetCurrent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("查询当前快照失败: %v", err)
	}
	if err := repo.GroupSnapshot.Archive(ctx, current, organizer.UserID); err != nil {
		t.Fatalf("归档失败: %v", err)
	}

	// 旧副本归档应触发乐观锁冲突
	stale := *first
	if err := repo.GroupSnapshot.Archive(ctx, &stale, organizer.UserID); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}

	replacement := &model.GroupSnapshot{EventID: event.EventID, Status: model.SnapshotStatusCurrent, Kind: model.SnapshotKindRebalance}
	if err := repo.GroupSnapshot.Create(ctx, replacement); err != nil {
		t.Fatalf("归档后应可创建新的 current 快照: %v", err)
	}

	all, err := repo.GroupSnapshot.ListByEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("ListByEvent 失败: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("期望 2 个快照，实际=%d", len(all))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_Event_ConflictDetected(t *testing.T) {
	_, event, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	copy1, _ := repo.Event.GetByID(ctx, event.EventID)
	copy2, _ := repo.Event.GetByID(ctx, event.EventID)

	copy1.RoundActive = true
	copy1.RoundNumber = 1
	if err := repo.Event.Update(ctx, copy1); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}
	if copy1.Version != copy2.Version+1 {
		t.Errorf("版本号应递增，实际 %d -> %d", copy2.Version, copy1.Version)
	}

	copy2.RoundActive = true
	if err := repo.Event.Update(ctx, copy2); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Participants & Soft Delete
// ═══════════════════════════════════════════════════════════

func TestEvent_AddParticipantIdempotent(t *testing.T) {
	organizer, event, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Event.AddParticipant(ctx, event.EventID, organizer.UserID); err != nil {
			t.Fatalf("第 %d 次加入失败: %v", i+1, err)
		}
	}

	participants, err := repo.Event.ListParticipants(ctx, event.EventID)
	if err != nil {
		t.Fatalf("ListParticipants 失败: %v", err)
	}
	if len(participants) != 1 {
		t.Errorf("重复加入应幂等，实际人数=%d", len(participants))
	}

	ok, err := repo.Event.IsParticipant(ctx, event.EventID, organizer.UserID)
	if err != nil || !ok {
		t.Errorf("IsParticipant 期望 true，实际 %v (%v)", ok, err)
	}
}

func TestEvent_SoftDelete(t *testing.T) {
	organizer, event, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	if err := repo.Event.Delete(ctx, event.EventID, organizer.UserID); err != nil {
		t.Fatalf("软删除失败: %v", err)
	}
	if _, err := repo.Event.GetByID(ctx, event.EventID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("软删除后应查不到活动，实际: %v", err)
	}
	if _, err := repo.Event.GetByJoinCode(ctx, event.JoinCode); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("软删除后加入码应失效，实际: %v", err)
	}

	var raw model.Event
	if err := testDB.Unscoped().Where("event_id = ?", event.EventID).First(&raw).Error; err != nil {
		t.Fatalf("Unscoped 查询失败: %v", err)
	}
	if raw.DeletedBy == nil || *raw.DeletedBy != organizer.UserID {
		t.Error("应记录删除人")
	}
}

// ═══════════════════════════════════════════════════════════
// Test: System Config Upsert
// ═══════════════════════════════════════════════════════════

func TestSystemConfig_Upsert(t *testing.T) {
	organizer, _, cleanup := setupTestEvent(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	original, err := repo.SystemConfig.Get(ctx)
	if err != nil {
		t.Fatalf("迁移应写入默认配置行: %v", err)
	}
	defer repo.SystemConfig.Update(ctx, original)

	if err := repo.SystemConfig.Update(ctx, &model.SystemConfig{
		MaxVotesPerTopic:        9,
		MinParticipantsPerTable: 5,
		GuestEmailDomain:        "guests.example.com",
		BaseModel:               model.BaseModel{UpdatedBy: &organizer.UserID},
	}); err != nil {
		t.Fatalf("Update 失败: %v", err)
	}

	got, err := repo.SystemConfig.Get(ctx)
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if got.MaxVotesPerTopic != 9 || got.MinParticipantsPerTable != 5 || got.GuestEmailDomain != "guests.example.com" {
		t.Errorf("配置未更新: %+v", got)
	}

	var rows int64
	testDB.Model(&model.SystemConfig{}).Count(&rows)
	if rows != 1 {
		t.Errorf("system_config 应只有一行，实际=%d", rows)
	}
}
