package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/model"
)

func setupTestUserService() (UserService, *testEnv) {
	env := newTestEnv()
	env.addUser("admin-1", "Admin", "admin@example.com", model.RoleAdmin, "")
	env.addUser("user-1", "Ada", "ada@example.com", model.RoleParticipant, "")
	env.addUser("user-2", "Bob", "bob@example.com", model.RoleOrganizer, "")
	env.addUser("guest-1", "Guest AB12CD", "guest-ab12cd34@guest.test", model.RoleGuest, "")
	return NewUserService(env.repo, zap.NewNop()), env
}

func TestUserService_GetByID(t *testing.T) {
	svc, _ := setupTestUserService()

	result, err := svc.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if result.Email != "ada@example.com" || result.CreatedAt == "" {
		t.Errorf("用户信息不符: %+v", result)
	}

	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

func TestUserService_List_FilterByRole(t *testing.T) {
	svc, _ := setupTestUserService()

	all, total, err := svc.List(context.Background(), &dto.UserListRequest{})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Errorf("期望 4 个用户，实际 total=%d len=%d", total, len(all))
	}

	guests, total, err := svc.List(context.Background(), &dto.UserListRequest{Role: model.RoleGuest})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 1 || !guests[0].IsGuest {
		t.Errorf("按角色筛选结果不符: %+v", guests)
	}
}

func TestUserService_Update_Self(t *testing.T) {
	svc, _ := setupTestUserService()

	result, err := svc.Update(context.Background(), "user-1", &dto.UpdateUserRequest{
		Name:  strPtr(" Ada Lovelace "),
		Email: strPtr("ada.l@example.com"),
	}, "user-1", model.RoleParticipant)
	if err != nil {
		t.Fatalf("更新自己应成功: %v", err)
	}
	if result.Name != "Ada Lovelace" || result.Email != "ada.l@example.com" {
		t.Errorf("更新结果不符: %+v", result)
	}
}

func TestUserService_Update_Failures(t *testing.T) {
	svc, _ := setupTestUserService()

	tests := []struct {
		name     string
		id       string
		req      *dto.UpdateUserRequest
		callerID string
		role     string
		want     error
	}{
		{"修改他人", "user-2", &dto.UpdateUserRequest{Name: strPtr("X")}, "user-1", model.RoleParticipant, ErrNoPermission},
		{"邮箱冲突", "user-1", &dto.UpdateUserRequest{Email: strPtr("bob@example.com")}, "user-1", model.RoleParticipant, ErrEmailExists},
		{"访客改邮箱", "guest-1", &dto.UpdateUserRequest{Email: strPtr("me@example.com")}, "guest-1", model.RoleGuest, ErrGuestEmailChange},
		{"用户不存在", "missing", &dto.UpdateUserRequest{Name: strPtr("X")}, "admin-1", model.RoleAdmin, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tt.id, tt.req, tt.callerID, tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

func TestUserService_Update_AdminOthers(t *testing.T) {
	svc, _ := setupTestUserService()

	result, err := svc.Update(context.Background(), "user-2", &dto.UpdateUserRequest{Name: strPtr("Robert")}, "admin-1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("管理员更新他人应成功: %v", err)
	}
	if result.Name != "Robert" {
		t.Errorf("期望 Name=Robert，实际=%s", result.Name)
	}
}

func TestUserService_AssignRole(t *testing.T) {
	svc, env := setupTestUserService()

	if err := svc.AssignRole(context.Background(), "user-1", &dto.AssignRoleRequest{Role: model.RoleOrganizer}, "admin-1"); err != nil {
		t.Fatalf("AssignRole 应成功: %v", err)
	}
	if env.users.users["user-1"].Role != model.RoleOrganizer {
		t.Errorf("角色应更新为 organizer，实际=%s", env.users.users["user-1"].Role)
	}

	if err := svc.AssignRole(context.Background(), "admin-1", &dto.AssignRoleRequest{Role: model.RoleParticipant}, "admin-1"); !errors.Is(err, ErrUserSelfRoleChange) {
		t.Errorf("期望 ErrUserSelfRoleChange，实际: %v", err)
	}
	if err := svc.AssignRole(context.Background(), "guest-1", &dto.AssignRoleRequest{Role: model.RoleOrganizer}, "admin-1"); !errors.Is(err, ErrGuestRoleChange) {
		t.Errorf("期望 ErrGuestRoleChange，实际: %v", err)
	}
	if err := svc.AssignRole(context.Background(), "missing", &dto.AssignRoleRequest{Role: model.RoleOrganizer}, "admin-1"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}
