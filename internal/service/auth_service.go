package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/internal/grouping"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
	"github.com/dmgrok/unconference/pkg/jwt"
	"github.com/dmgrok/unconference/pkg/redis"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidJoinCode    = errors.New("加入码无效")
	ErrEventClosed        = errors.New("活动已关闭")
	ErrInvalidToken       = errors.New("Token 无效或已过期")
	ErrWrongPassword      = errors.New("原密码错误")
	ErrGuestNoPassword    = errors.New("访客账号不支持密码操作")
)

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	GuestJoin(ctx context.Context, req *dto.GuestJoinRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, jti string, ttl time.Duration) error
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error
}

type authService struct {
	repo     *repository.Repository
	jwtMgr   *jwt.Manager
	rdb      *redis.Client
	settings *settingsResolver
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	settings *settingsResolver,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:     repo,
		jwtMgr:   jwtMgr,
		rdb:      rdb,
		settings: settings,
		logger:   logger,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 访客无密码
	if user.IsGuest || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	// 3. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 4. 生成 Token 对
	return s.issueTokens(user, "")
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := strings.TrimSpace(req.Email)

	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 附带加入码时先校验活动
	var event *model.Event
	if req.JoinCode != "" {
		var err error
		if event, err = s.eventByJoinCode(ctx, req.JoinCode); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleParticipant,
	}

	if err := s.createAndJoin(ctx, user, event); err != nil {
		return nil, err
	}

	eventID := ""
	if event != nil {
		eventID = event.EventID
	}
	return s.issueTokens(user, eventID)
}

// ────────────────────── GuestJoin ──────────────────────

// GuestJoin 访客凭加入码进入活动：创建访客身份并签发短期 Access Token
func (s *authService) GuestJoin(ctx context.Context, req *dto.GuestJoinRequest) (*dto.TokenResponse, error) {
	event, err := s.eventByJoinCode(ctx, req.JoinCode)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.forEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	// guest-3fa2b1c9@<访客域名>
	local := "guest-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	email := fmt.Sprintf("%s@%s", local, settings.GuestEmailDomain)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = grouping.NewResolver(nil, settings.GuestEmailDomain)(email).Name
	}

	user := &model.User{
		Name:    name,
		Email:   email,
		Role:    model.RoleGuest,
		IsGuest: true,
	}

	if err := s.createAndJoin(ctx, user, event); err != nil {
		return nil, err
	}

	return s.issueTokens(user, event.EventID)
}

// ────────────────────── RefreshToken ──────────────────────

func (s *authService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	if s.rdb != nil {
		revoked, err := s.rdb.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 轮换：旧 Refresh Token 作废
	if err := s.Logout(ctx, claims.ID, claims.RemainingTTL()); err != nil {
		return nil, err
	}

	return s.issueTokens(user, "")
}

// ────────────────────── Logout ──────────────────────

// Logout 将 Token 加入黑名单；未配置 Redis 时仅依赖 Token 自然过期
func (s *authService) Logout(ctx context.Context, jti string, ttl time.Duration) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	if err := s.rdb.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ChangePassword ──────────────────────

func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", userID), zap.Error(err))
		return err
	}

	if user.IsGuest {
		return ErrGuestNoPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}

	user.PasswordHash = string(hash)
	user.MustChangePassword = false
	user.UpdatedBy = &userID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("修改密码失败", zap.String("id", userID), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *authService) eventByJoinCode(ctx context.Context, code string) (*model.Event, error) {
	event, err := s.repo.Event.GetByJoinCode(ctx, normalizeJoinCode(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidJoinCode
		}
		s.logger.Error("查询活动失败", zap.Error(err))
		return nil, err
	}
	if event.Status == model.EventStatusClosed {
		return nil, ErrEventClosed
	}
	return event, nil
}

// createAndJoin 在同一事务中创建用户并（可选）加入活动
func (s *authService) createAndJoin(ctx context.Context, user *model.User, event *model.Event) error {
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

	if err := txRepo.User.Create(ctx, user); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return err
	}

	if event != nil {
		if err := txRepo.Event.AddParticipant(ctx, event.EventID, user.UserID); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("加入活动失败", zap.String("event_id", event.EventID), zap.Error(err))
			return err
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

func (s *authService) issueTokens(user *model.User, eventID string) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL(user.Role).Seconds()),
		User:         *toUserResponse(user),
		EventID:      eventID,
	}, nil
}

func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
