package model

// Room 房间表 — 对应 rooms（按活动维护）
type Room struct {
	RoomID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"room_id"`
	EventID     string `gorm:"type:uuid;not null"                             json:"event_id"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	Capacity    int    `gorm:"not null"                                       json:"capacity"`
	Location    string `gorm:"type:varchar(200);not null;default:''"          json:"location"`
	Description string `gorm:"type:text;not null;default:''"                  json:"description"`
	IsAvailable bool   `gorm:"not null;default:true"                          json:"is_available"`
	SoftDeleteModel
}

// TableName 指定表名
func (Room) TableName() string { return "rooms" }
