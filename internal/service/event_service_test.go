package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/model"
)

func setupTestEventService() (EventService, *testEnv) {
	env := newTestEnv()
	env.addUser("org-1", "Olivia", "olivia@example.com", model.RoleOrganizer, "")
	env.addUser("p-1", "Pat", "pat@example.com", model.RoleParticipant, "")
	return NewEventService(env.repo, env.settings(), zap.NewNop()), env
}

func intPtr(n int) *int { return &n }

// ── Create ──

func TestEventService_Create_Success(t *testing.T) {
	svc, env := setupTestEventService()

	result, err := svc.Create(context.Background(), &dto.CreateEventRequest{
		Name:                    "  DevOpsDays  ",
		MinParticipantsPerTable: intPtr(5),
		GuestEmailDomain:        "Guests.Example.com",
	}, "org-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	if result.Name != "DevOpsDays" {
		t.Errorf("名称应去除首尾空白，实际=%q", result.Name)
	}
	if len(result.JoinCode) != joinCodeLength {
		t.Errorf("加入码长度应为 %d，实际=%q", joinCodeLength, result.JoinCode)
	}
	for _, c := range result.JoinCode {
		if !strings.ContainsRune(joinCodeAlphabet, c) {
			t.Errorf("加入码包含非法字符 %q", c)
		}
	}
	if result.Status != model.EventStatusOpen {
		t.Errorf("期望状态 open，实际=%s", result.Status)
	}
	if result.MinParticipantsPerTable != 5 {
		t.Errorf("活动设置应覆盖默认值，实际=%d", result.MinParticipantsPerTable)
	}
	if result.MaxVotesPerTopic != 3 {
		t.Errorf("未设置时应使用默认阈值 3，实际=%d", result.MaxVotesPerTopic)
	}
	if result.GuestEmailDomain != "guests.example.com" {
		t.Errorf("访客域名应转为小写，实际=%s", result.GuestEmailDomain)
	}

	joined, _ := env.events.IsParticipant(context.Background(), result.ID, "org-1")
	if !joined {
		t.Error("组织者应自动加入活动")
	}
}

// ── GetByID / List ──

func TestEventService_GetByID_JoinCodeVisibility(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234", "p-1")

	asOrganizer, err := svc.GetByID(context.Background(), "ev-1", "org-1", model.RoleOrganizer)
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if asOrganizer.JoinCode != "ABC234" {
		t.Errorf("组织者应看到加入码，实际=%q", asOrganizer.JoinCode)
	}
	if asOrganizer.ParticipantCount != 2 {
		t.Errorf("期望参与人数 2（含组织者），实际=%d", asOrganizer.ParticipantCount)
	}

	asParticipant, err := svc.GetByID(context.Background(), "ev-1", "p-1", model.RoleParticipant)
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if asParticipant.JoinCode != "" {
		t.Error("参与者不应看到加入码")
	}
}

func TestEventService_GetByID_Errors(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234")

	if _, err := svc.GetByID(context.Background(), "missing", "org-1", model.RoleOrganizer); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("期望 ErrEventNotFound，实际: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), "ev-1", "p-1", model.RoleParticipant); !errors.Is(err, ErrNotEventParticipant) {
		t.Errorf("期望 ErrNotEventParticipant，实际: %v", err)
	}
}

func TestEventService_List(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234", "p-1")
	env.addEvent("ev-2", "org-1", "DEF567")

	mine, total, err := svc.List(context.Background(), &dto.EventListRequest{}, "p-1", model.RoleParticipant)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 1 || mine[0].ID != "ev-1" {
		t.Errorf("参与者只应看到已加入的活动，实际 total=%d", total)
	}

	_, total, err = svc.List(context.Background(), &dto.EventListRequest{}, "admin-1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 2 {
		t.Errorf("管理员应看到全部活动，实际 total=%d", total)
	}
}

// ── Update / Delete ──

func TestEventService_Update(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234", "p-1")
	env.events.events["ev-1"].RoundActive = true

	_, err := svc.Update(context.Background(), "ev-1", &dto.UpdateEventRequest{Name: strPtr("Hijack")}, "p-1", model.RoleParticipant)
	if !errors.Is(err, ErrNoPermission) {
		t.Errorf("参与者期望 ErrNoPermission，实际: %v", err)
	}

	closed := model.EventStatusClosed
	result, err := svc.Update(context.Background(), "ev-1", &dto.UpdateEventRequest{
		Status:           &closed,
		MaxVotesPerTopic: intPtr(7),
	}, "org-1", model.RoleOrganizer)
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if result.Status != model.EventStatusClosed || result.RoundActive {
		t.Errorf("关闭活动应结束进行中的轮次，实际 status=%s round_active=%v", result.Status, result.RoundActive)
	}
	if result.MaxVotesPerTopic != 7 {
		t.Errorf("期望阈值 7，实际=%d", result.MaxVotesPerTopic)
	}
}

func TestEventService_Delete(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234", "p-1")

	if err := svc.Delete(context.Background(), "ev-1", "p-1", model.RoleParticipant); !errors.Is(err, ErrNoPermission) {
		t.Errorf("期望 ErrNoPermission，实际: %v", err)
	}
	if err := svc.Delete(context.Background(), "ev-1", "org-1", model.RoleOrganizer); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if _, ok := env.events.events["ev-1"]; ok {
		t.Error("活动应被删除")
	}
}

// ── Join ──

func TestEventService_Join(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234")

	result, err := svc.Join(context.Background(), &dto.JoinEventRequest{JoinCode: " abc234 "}, "p-1")
	if err != nil {
		t.Fatalf("Join 应成功（加入码大小写不敏感）: %v", err)
	}
	if result.ID != "ev-1" || result.JoinCode != "" {
		t.Errorf("加入结果不符: %+v", result)
	}
	joined, _ := env.events.IsParticipant(context.Background(), "ev-1", "p-1")
	if !joined {
		t.Error("应加入活动")
	}

	// 重复加入幂等
	if _, err := svc.Join(context.Background(), &dto.JoinEventRequest{JoinCode: "ABC234"}, "p-1"); err != nil {
		t.Errorf("重复加入应成功: %v", err)
	}
}

func TestEventService_Join_Errors(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234")
	env.events.events["ev-1"].Status = model.EventStatusClosed

	if _, err := svc.Join(context.Background(), &dto.JoinEventRequest{JoinCode: "NOPE99"}, "p-1"); !errors.Is(err, ErrInvalidJoinCode) {
		t.Errorf("期望 ErrInvalidJoinCode，实际: %v", err)
	}
	if _, err := svc.Join(context.Background(), &dto.JoinEventRequest{JoinCode: "ABC234"}, "p-1"); !errors.Is(err, ErrEventClosed) {
		t.Errorf("期望 ErrEventClosed，实际: %v", err)
	}
}

// ── 轮次 ──

func TestEventService_StartAndEndRound(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234")
	ctx := context.Background()

	if _, err := svc.EndRound(ctx, "ev-1", "org-1", model.RoleOrganizer); !errors.Is(err, ErrRoundNotActive) {
		t.Errorf("未开始时期望 ErrRoundNotActive，实际: %v", err)
	}

	started, err := svc.StartRound(ctx, "ev-1", "org-1", model.RoleOrganizer)
	if err != nil {
		t.Fatalf("StartRound 应成功: %v", err)
	}
	if !started.RoundActive || started.RoundNumber != 1 || started.RoundStartedAt == nil {
		t.Errorf("轮次状态不符: %+v", started)
	}

	if _, err := svc.StartRound(ctx, "ev-1", "org-1", model.RoleOrganizer); !errors.Is(err, ErrRoundActive) {
		t.Errorf("重复开启期望 ErrRoundActive，实际: %v", err)
	}

	ended, err := svc.EndRound(ctx, "ev-1", "org-1", model.RoleOrganizer)
	if err != nil {
		t.Fatalf("EndRound 应成功: %v", err)
	}
	if ended.RoundActive {
		t.Error("轮次应已结束")
	}

	again, err := svc.StartRound(ctx, "ev-1", "org-1", model.RoleOrganizer)
	if err != nil {
		t.Fatalf("第二轮 StartRound 应成功: %v", err)
	}
	if again.RoundNumber != 2 {
		t.Errorf("期望轮次号 2，实际=%d", again.RoundNumber)
	}
}

func TestEventService_StartRound_Closed(t *testing.T) {
	svc, env := setupTestEventService()
	env.addEvent("ev-1", "org-1", "ABC234")
	env.events.events["ev-1"].Status = model.EventStatusClosed

	if _, err := svc.StartRound(context.Background(), "ev-1", "org-1", model.RoleOrganizer); !errors.Is(err, ErrEventClosed) {
		t.Errorf("期望 ErrEventClosed，实际: %v", err)
	}
}
