package model

import "time"

// 投票类型
const (
	VoteKindLegacy = "legacy" // 不区分志愿
	VoteKindFirst  = "first"
	VoteKindSecond = "second"
)

// Topic 话题表 — 对应 topics
type Topic struct {
	TopicID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"topic_id"`
	EventID          string `gorm:"type:uuid;not null"                             json:"event_id"`
	Title            string `gorm:"type:varchar(200);not null"                     json:"title"`
	Description      string `gorm:"type:text;not null;default:''"                  json:"description"`
	AuthorID         string `gorm:"type:uuid;not null"                             json:"author_id"`
	SelectedForRound bool   `gorm:"not null;default:false"                         json:"selected_for_round"`
	VersionedModel

	// 关联
	Author *User       `gorm:"foreignKey:AuthorID;references:UserID" json:"author,omitempty"`
	Votes  []TopicVote `gorm:"foreignKey:TopicID"                     json:"votes,omitempty"`
}

// TableName 指定表名
func (Topic) TableName() string { return "topics" }

// VoterEmails 按类型返回投票人 email（按投票时间顺序，需预加载 Votes.User）
func (t *Topic) VoterEmails(kind string) []string {
	var out []string
	for _, v := range t.Votes {
		if v.Kind != kind || v.User == nil {
			continue
		}
		out = append(out, v.User.Email)
	}
	return out
}

// TopicVote 话题投票表 — 对应 topic_votes
// 同一用户在同一活动中 first / second 各至多一票
type TopicVote struct {
	TopicVoteID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"topic_vote_id"`
	TopicID     string    `gorm:"type:uuid;not null"                             json:"topic_id"`
	EventID     string    `gorm:"type:uuid;not null"                             json:"event_id"`
	UserID      string    `gorm:"type:uuid;not null"                             json:"user_id"`
	Kind        string    `gorm:"type:varchar(10);not null"                      json:"kind"` // legacy | first | second
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (TopicVote) TableName() string { return "topic_votes" }
