package grouping

import "errors"

// ── 分组引擎错误（调用方错误，不可重试） ──

var (
	ErrNoRoomsAvailable       = errors.New("no rooms available")
	ErrNoTopicsReady          = errors.New("no topics ready for group formation")
	ErrNoExistingGroups       = errors.New("no existing groups found")
	ErrInvalidMinParticipants = errors.New("min participants per table out of range")
)

const (
	// MinParticipantsLowerBound / MinParticipantsUpperBound 每桌最少人数的取值范围
	MinParticipantsLowerBound = 3
	MinParticipantsUpperBound = 15

	// DefaultMinParticipantsPerTable 未指定时的每桌最少人数
	DefaultMinParticipantsPerTable = 4

	// roomFitFloor 选房时的宽松下限：大话题不必等完全合适的房间
	roomFitFloor = 6

	// unboundedCapacity 未绑定房间的分组视为容量无限
	unboundedCapacity = 999

	// OverflowTopicTitle 溢出组标题
	OverflowTopicTitle = "Overflow Discussion Group"

	// NoRebalanceNeeded 无需重新平衡时的唯一变更记录
	NoRebalanceNeeded = "No rebalancing needed - all groups meet minimum capacity"
)

// Participant 分组中的参与者（email 为稳定身份）
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Topic 参与分组的话题
type Topic struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Voters             []string `json:"voters,omitempty"`
	FirstChoiceVoters  []string `json:"first_choice_voters,omitempty"`
	SecondChoiceVoters []string `json:"second_choice_voters,omitempty"`
	SelectedForRound   bool     `json:"selected_for_round"`
}

// AllVoters 返回去重后的全部投票人，顺序为 Voters → 第一志愿 → 第二志愿
func (t *Topic) AllVoters() []string {
	n := len(t.Voters) + len(t.FirstChoiceVoters) + len(t.SecondChoiceVoters)
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for _, list := range [][]string{t.Voters, t.FirstChoiceVoters, t.SecondChoiceVoters} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Votes 话题票数：有志愿数据时按志愿计数，否则按旧版投票人数
func (t *Topic) Votes() int {
	if len(t.FirstChoiceVoters) > 0 || len(t.SecondChoiceVoters) > 0 {
		return len(t.FirstChoiceVoters) + len(t.SecondChoiceVoters)
	}
	return len(t.Voters)
}

// Room 可分配的房间
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Location  string `json:"location,omitempty"`
	Available bool   `json:"available"`
}

// Group 一个话题对应的分组（房间字段为空表示未分配房间）
type Group struct {
	TopicID        string        `json:"topic_id,omitempty"`
	TopicTitle     string        `json:"topic_title"`
	GroupNumber    int           `json:"group_number"`
	RoomID         string        `json:"room_id,omitempty"`
	RoomName       string        `json:"room_name,omitempty"`
	RoomCapacity   int           `json:"room_capacity,omitempty"`
	RoomLocation   string        `json:"room_location,omitempty"`
	Participants   []Participant `json:"participants"`
	Waitlist       []Participant `json:"waitlist"`
	IsOvercapacity bool          `json:"is_overcapacity"`
	ActualCapacity int           `json:"actual_capacity"`
}

// HasRoom 是否已绑定房间
func (g *Group) HasRoom() bool { return g.RoomID != "" }

func (g *Group) assignRoom(r Room) {
	g.RoomID = r.ID
	g.RoomName = r.Name
	g.RoomCapacity = r.Capacity
	g.RoomLocation = r.Location
}

func (g *Group) refresh() {
	g.ActualCapacity = len(g.Participants)
	g.IsOvercapacity = len(g.Waitlist) > 0
}

func (g Group) clone() Group {
	c := g
	c.Participants = append([]Participant(nil), g.Participants...)
	c.Waitlist = append([]Participant(nil), g.Waitlist...)
	if c.Participants == nil {
		c.Participants = []Participant{}
	}
	if c.Waitlist == nil {
		c.Waitlist = []Participant{}
	}
	return c
}

func cloneGroups(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i := range groups {
		out[i] = groups[i].clone()
	}
	return out
}

// AssignmentResult 一次分组的结果汇总
type AssignmentResult struct {
	GroupCount             int      `json:"group_count"`
	TotalParticipants      int      `json:"total_participants"`
	AssignedParticipants   int      `json:"assigned_participants"`
	WaitlistedParticipants int      `json:"waitlisted_participants"`
	RoomsUsed              int      `json:"rooms_used"`
	RoomsAvailable         int      `json:"rooms_available"`
	UtilizationRate        int      `json:"utilization_rate"`
	Warnings               []string `json:"warnings"`
	HasCapacityIssues      bool     `json:"has_capacity_issues"`
	Groups                 []Group  `json:"groups"`
}

// RebalanceStatistics 重新平衡统计
type RebalanceStatistics struct {
	TotalParticipants      int `json:"total_participants"`
	GroupsBefore           int `json:"groups_before"`
	GroupsAfter            int `json:"groups_after"`
	ParticipantsReassigned int `json:"participants_reassigned"`
}

// RebalanceResult 重新平衡报告
type RebalanceResult struct {
	Success          bool                `json:"success"`
	OriginalGroups   []Group             `json:"original_groups"`
	RebalancedGroups []Group             `json:"rebalanced_groups"`
	Changes          []string            `json:"changes"`
	Statistics       RebalanceStatistics `json:"statistics"`
}
