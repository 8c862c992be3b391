package grouping

import (
	"fmt"
	"math"
	"sort"
)

// Assign 将已选话题贪心地分配到可用房间
//
// 算法（确定性，一次遍历）：
//   - 话题按投票人数降序、房间按容量降序（均为稳定排序）
//   - 每个话题取第一个容量 ≥ min(人数, 6) 的未用房间，否则取剩余最大房间
//   - 房间容量不足时按投票顺序入座前 capacity 人，其余进入候补
//   - 房间用尽的话题不分配房间，全部投票人进入候补
//
// 调用方负责传入 selected 话题与 available 房间；任一为空返回调用方错误。
func Assign(topics []Topic, rooms []Room, resolve Resolver) (*AssignmentResult, error) {
	if len(rooms) == 0 {
		return nil, ErrNoRoomsAvailable
	}
	if len(topics) == 0 {
		return nil, ErrNoTopicsReady
	}
	if resolve == nil {
		resolve = NewResolver(nil, "")
	}

	type rankedTopic struct {
		topic  Topic
		voters []string
	}
	ranked := make([]rankedTopic, 0, len(topics))
	for _, t := range topics {
		ranked = append(ranked, rankedTopic{topic: t, voters: t.AllVoters()})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].voters) > len(ranked[j].voters)
	})

	sortedRooms := append([]Room(nil), rooms...)
	sort.SliceStable(sortedRooms, func(i, j int) bool {
		return sortedRooms[i].Capacity > sortedRooms[j].Capacity
	})
	used := make([]bool, len(sortedRooms))

	result := &AssignmentResult{
		RoomsAvailable: len(sortedRooms),
		Warnings:       make([]string, 0),
		Groups:         make([]Group, 0, len(ranked)),
	}

	for i, rt := range ranked {
		participants := make([]Participant, 0, len(rt.voters))
		for _, v := range rt.voters {
			participants = append(participants, resolve(v))
		}

		group := Group{
			TopicID:      rt.topic.ID,
			TopicTitle:   rt.topic.Title,
			GroupNumber:  i + 1,
			Participants: []Participant{},
			Waitlist:     []Participant{},
		}

		idx := pickRoom(sortedRooms, used, len(participants))
		if idx < 0 {
			group.Waitlist = participants
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Topic \"%s\" could not be assigned a room - all %d participants waitlisted",
					rt.topic.Title, len(participants)))
		} else {
			room := sortedRooms[idx]
			used[idx] = true
			group.assignRoom(room)

			capacity := max(room.Capacity, 0)
			if capacity < len(participants) {
				group.Participants = participants[:capacity:capacity]
				group.Waitlist = append([]Participant{}, participants[capacity:]...)
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Topic \"%s\" has %d participants but room \"%s\" only holds %d - %d waitlisted",
						rt.topic.Title, len(participants), room.Name, room.Capacity, len(group.Waitlist)))
			} else {
				group.Participants = participants
			}
			result.RoomsUsed++
		}

		group.refresh()
		result.AssignedParticipants += len(group.Participants)
		result.WaitlistedParticipants += len(group.Waitlist)
		if group.IsOvercapacity {
			result.HasCapacityIssues = true
		}
		result.Groups = append(result.Groups, group)
	}

	result.GroupCount = len(result.Groups)
	result.TotalParticipants = result.AssignedParticipants + result.WaitlistedParticipants
	result.UtilizationRate = int(math.Round(float64(result.RoomsUsed) / float64(result.RoomsAvailable) * 100))

	return result, nil
}

// pickRoom 返回选中的房间下标；无剩余房间返回 -1
// rooms 已按容量降序，首个未用房间即最大剩余房间
func pickRoom(rooms []Room, used []bool, voterCount int) int {
	need := voterCount
	if need > roomFitFloor {
		need = roomFitFloor
	}

	largest := -1
	for i, r := range rooms {
		if used[i] {
			continue
		}
		if largest < 0 {
			largest = i
		}
		if r.Capacity >= need {
			return i
		}
	}
	return largest
}
