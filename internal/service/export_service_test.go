package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/model"
)

func TestExportService_ExportGroups(t *testing.T) {
	groupSvc, env, _, _ := setupTestGroupService()
	seedAssignmentScenario(env)
	if _, err := groupSvc.CreateGroups(context.Background(), "ev-1", "org-1", model.RoleOrganizer); err != nil {
		t.Fatalf("CreateGroups 应成功: %v", err)
	}
	snapshot, _ := env.snapshots.GetCurrent(context.Background(), "ev-1")

	svc := NewExportService(env.repo, zap.NewNop())
	buf, filename, err := svc.ExportGroups(context.Background(), "ev-1", "org-1", model.RoleOrganizer)
	if err != nil {
		t.Fatalf("ExportGroups 应成功: %v", err)
	}

	wantName := fmt.Sprintf("分组名单_Event ev-1_第%d轮.xlsx", snapshot.RoundNumber)
	if filename != wantName {
		t.Errorf("期望文件名 %s，实际=%s", wantName, filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("导出文件应可被解析: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("分组名单")
	if err != nil {
		t.Fatalf("应包含 分组名单 工作表: %v", err)
	}
	// 标题 + 表头 + 7 入座 + 1 候补
	if len(rows) != 10 {
		t.Fatalf("期望 10 行，实际=%d", len(rows))
	}
	if rows[1][0] != "组号" || rows[1][6] != "状态" {
		t.Errorf("表头不符: %v", rows[1])
	}
	if rows[2][1] != "Go Concurrency" || rows[2][2] != "Big" || rows[2][6] != "已入座" {
		t.Errorf("第一位成员行不符: %v", rows[2])
	}
	if rows[6][5] != "p-5@example.com" || rows[6][6] != "候补" {
		t.Errorf("候补行应紧随第 1 组入座成员，实际: %v", rows[6])
	}

	summary, err := f.GetRows("概览")
	if err != nil {
		t.Fatalf("应包含 概览 工作表: %v", err)
	}
	if len(summary) != 3 {
		t.Errorf("概览应为表头 + 2 组，实际=%d 行", len(summary))
	}
	if summary[1][4] != "4" || summary[1][5] != "1" {
		t.Errorf("第 1 组人数统计不符: %v", summary[1])
	}

	warnIdx, err := f.GetSheetIndex("警告")
	if err != nil {
		t.Fatalf("GetSheetIndex 失败: %v", err)
	}
	hasWarningSheet := warnIdx >= 0
	if hasWarningSheet != (len(snapshot.Warnings) > 0) {
		t.Errorf("警告工作表应与快照警告一致，warnings=%d sheet=%v", len(snapshot.Warnings), hasWarningSheet)
	}
}

func TestExportService_ExportGroups_Errors(t *testing.T) {
	env := newTestEnv()
	env.addUser("org-1", "Olivia", "olivia@example.com", model.RoleOrganizer, "")
	env.addUser("p-1", "Pat", "pat@example.com", model.RoleParticipant, "")
	env.addEvent("ev-1", "org-1", "ABC234", "p-1")
	svc := NewExportService(env.repo, zap.NewNop())

	if _, _, err := svc.ExportGroups(context.Background(), "ev-1", "org-1", model.RoleOrganizer); !errors.Is(err, grouping.ErrNoExistingGroups) {
		t.Errorf("无分组时期望 ErrNoExistingGroups，实际: %v", err)
	}
	if _, _, err := svc.ExportGroups(context.Background(), "ev-1", "p-1", model.RoleParticipant); !errors.Is(err, ErrNoPermission) {
		t.Errorf("期望 ErrNoPermission，实际: %v", err)
	}
	if _, _, err := svc.ExportGroups(context.Background(), "missing", "org-1", model.RoleOrganizer); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("期望 ErrEventNotFound，实际: %v", err)
	}
}
