package handler

import "github.com/dmgrok/unconference/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Event        *EventHandler
	Topic        *TopicHandler
	Room         *RoomHandler
	Group        *GroupHandler
	Export       *ExportHandler
	SystemConfig *SystemConfigHandler
	Health       *HealthHandler
}

// NewHandler 创建 Handler 聚合
// checks 为健康检查依赖（如 "database"、"redis"）
func NewHandler(svc *service.Service, checks map[string]Pinger) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Event:        NewEventHandler(svc.Event),
		Topic:        NewTopicHandler(svc.Topic),
		Room:         NewRoomHandler(svc.Room),
		Group:        NewGroupHandler(svc.Group),
		Export:       NewExportHandler(svc.Export),
		SystemConfig: NewSystemConfigHandler(svc.SystemConfig),
		Health:       NewHealthHandler(checks),
	}
}
