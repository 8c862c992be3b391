package grouping

import (
	"fmt"
	"strings"
)

// pooled 解散组中待重新安置的参与者
type pooled struct {
	participant   Participant
	originTopicID string
	secondChoice  string // 第二志愿话题ID，空表示无
}

// Rebalance 解散人数不足的分组并重新安置其参与者
//
// 三阶段（确定性）：
//  1. 第二志愿：目标组存在且有空位则加入
//  2. 最佳可用：在有空位的组中选当前人数最多者（优先填满，避免多个半空桌）
//  3. 溢出：剩余参与者合并为一个溢出组，尽量使用一个未被占用的可用房间
//
// 最后按当前顺序重新编号 1..K。输入 groups 不会被修改。
func Rebalance(groups []Group, topics []Topic, rooms []Room, minPerTable int) (*RebalanceResult, error) {
	if len(groups) == 0 {
		return nil, ErrNoExistingGroups
	}
	if minPerTable == 0 {
		minPerTable = DefaultMinParticipantsPerTable
	}
	if minPerTable < MinParticipantsLowerBound || minPerTable > MinParticipantsUpperBound {
		return nil, ErrInvalidMinParticipants
	}

	original := cloneGroups(groups)
	stats := RebalanceStatistics{
		TotalParticipants: countParticipants(original),
		GroupsBefore:      len(original),
	}

	// ── 划分 ──
	var under, working []Group
	for _, g := range cloneGroups(groups) {
		if len(g.Participants) < minPerTable {
			under = append(under, g)
		} else {
			working = append(working, g)
		}
	}

	if len(under) == 0 {
		stats.GroupsAfter = len(original)
		return &RebalanceResult{
			Success:          true,
			OriginalGroups:   original,
			RebalancedGroups: cloneGroups(groups),
			Changes:          []string{NoRebalanceNeeded},
			Statistics:       stats,
		}, nil
	}

	changes := make([]string, 0, len(under)+8)
	capacityOf := roomCapacityLookup(rooms)
	secondChoiceOf := secondChoiceLookup(topics)

	// ── 解散 ──
	var pool []pooled
	for _, g := range under {
		changes = append(changes, fmt.Sprintf("Dissolving group %d (%s) with %d participants",
			g.GroupNumber, g.TopicTitle, len(g.Participants)))
		for _, p := range g.Participants {
			pool = append(pool, pooled{
				participant:   p,
				originTopicID: g.TopicID,
				secondChoice:  secondChoiceOf(p.Email),
			})
		}
	}

	reassigned := 0

	// ── 阶段1：第二志愿 ──
	pool = drainReverse(pool, func(item pooled) bool {
		if item.secondChoice == "" || item.secondChoice == item.originTopicID {
			return false
		}
		for i := range working {
			g := &working[i]
			if g.TopicID != item.secondChoice {
				continue
			}
			if len(g.Participants) >= capacityOf(g) {
				return false
			}
			g.Participants = append(g.Participants, item.participant)
			changes = append(changes, fmt.Sprintf("Moved %s to second choice: %s",
				item.participant.Name, g.TopicTitle))
			reassigned++
			return true
		}
		return false
	})

	// ── 阶段2：最佳可用 ──
	pool = drainReverse(pool, func(item pooled) bool {
		best := -1
		for i := range working {
			g := &working[i]
			if capacityOf(g)-len(g.Participants) <= 0 {
				continue
			}
			if best < 0 || len(g.Participants) > len(working[best].Participants) {
				best = i
			}
		}
		if best < 0 {
			return false
		}
		g := &working[best]
		g.Participants = append(g.Participants, item.participant)
		changes = append(changes, fmt.Sprintf("Moved %s to %s (best available fit)",
			item.participant.Name, g.TopicTitle))
		reassigned++
		return true
	})

	// ── 阶段3：溢出组 ──
	if len(pool) > 0 {
		overflow := Group{
			TopicTitle:   OverflowTopicTitle,
			GroupNumber:  len(working) + 1,
			Participants: make([]Participant, 0, len(pool)),
			Waitlist:     []Participant{},
		}
		for _, item := range pool {
			overflow.Participants = append(overflow.Participants, item.participant)
		}
		if room, ok := unusedAvailableRoom(rooms, working); ok {
			overflow.assignRoom(room)
		}
		working = append(working, overflow)

		msg := fmt.Sprintf("Created overflow group with %d participants", len(pool))
		if overflow.HasRoom() {
			msg += fmt.Sprintf(" in %s", overflow.RoomName)
		}
		changes = append(changes, msg)
	}

	// ── 重新编号 ──
	for i := range working {
		working[i].GroupNumber = i + 1
		working[i].refresh()
	}

	stats.GroupsAfter = len(working)
	stats.ParticipantsReassigned = reassigned

	return &RebalanceResult{
		Success:          true,
		OriginalGroups:   original,
		RebalancedGroups: working,
		Changes:          changes,
		Statistics:       stats,
	}, nil
}

// drainReverse 从尾到头处理待安置队列，place 返回 true 表示已安置；
// 返回未安置的参与者，保持其原有相对顺序
func drainReverse(pool []pooled, place func(pooled) bool) []pooled {
	kept := make([]pooled, 0, len(pool))
	for i := len(pool) - 1; i >= 0; i-- {
		if !place(pool[i]) {
			kept = append(kept, pool[i])
		}
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	return kept
}

// roomCapacityLookup 房间容量查询：无房间时视为无限
func roomCapacityLookup(rooms []Room) func(g *Group) int {
	byID := make(map[string]int, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = r.Capacity
	}
	return func(g *Group) int {
		if !g.HasRoom() {
			return unboundedCapacity
		}
		if c, ok := byID[g.RoomID]; ok {
			return c
		}
		if g.RoomCapacity > 0 {
			return g.RoomCapacity
		}
		return unboundedCapacity
	}
}

// secondChoiceLookup 按话题列表顺序查找第二志愿，先命中者优先
func secondChoiceLookup(topics []Topic) func(email string) string {
	return func(email string) string {
		key := strings.ToLower(email)
		for _, t := range topics {
			for _, v := range t.SecondChoiceVoters {
				if strings.ToLower(v) == key {
					return t.ID
				}
			}
		}
		return ""
	}
}

func unusedAvailableRoom(rooms []Room, groups []Group) (Room, bool) {
	inUse := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.HasRoom() {
			inUse[g.RoomID] = true
		}
	}
	for _, r := range rooms {
		if r.Available && !inUse[r.ID] {
			return r, true
		}
	}
	return Room{}, false
}

func countParticipants(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Participants)
	}
	return n
}
