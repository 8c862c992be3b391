package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/dmgrok/unconference/config"
	"github.com/dmgrok/unconference/internal/model"
	"github.com/dmgrok/unconference/internal/repository"
	pkgerrors "github.com/dmgrok/unconference/pkg/errors"
)

// errDuplicate 模拟唯一约束冲突
var errDuplicate = errors.New("duplicate key value violates unique constraint")

// mockClock 单调递增时间，保证按创建顺序排序稳定
type mockClock struct{ t time.Time }

func (c *mockClock) next() time.Time {
	if c.t.IsZero() {
		c.t = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	c.t = c.t.Add(time.Second)
	return c.t
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
	clock *mockClock
}

func newMockUserRepo(clock *mockClock) *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User), clock: clock}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errDuplicate
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%03d", m.seq)
	}
	user.CreatedAt = m.clock.next()
	user.Version = 1
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByEmails(_ context.Context, emails []string) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		for _, e := range emails {
			if strings.EqualFold(u.Email, e) {
				result = append(result, *u)
				break
			}
		}
	}
	return result, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	stored, ok := m.users[user.UserID]
	if !ok || stored.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	user.Version++
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) List(_ context.Context, role string, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

// ── Mock EventRepository ──

type mockEventRepo struct {
	events       map[string]*model.Event
	participants map[string]map[string]time.Time
	users        *mockUserRepo
	seq          int
	clock        *mockClock
}

func newMockEventRepo(users *mockUserRepo, clock *mockClock) *mockEventRepo {
	return &mockEventRepo{
		events:       make(map[string]*model.Event),
		participants: make(map[string]map[string]time.Time),
		users:        users,
		clock:        clock,
	}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	if event.EventID == "" {
		m.seq++
		event.EventID = fmt.Sprintf("event-%03d", m.seq)
	}
	event.CreatedAt = m.clock.next()
	event.Version = 1
	cp := *event
	m.events[event.EventID] = &cp
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) GetByJoinCode(_ context.Context, code string) (*model.Event, error) {
	for _, e := range m.events {
		if e.JoinCode == code {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) List(_ context.Context, userID string, offset, limit int) ([]model.Event, int64, error) {
	var all []model.Event
	for _, e := range m.events {
		_, joined := m.participants[e.EventID][userID]
		if userID == "" || e.OrganizerID == userID || joined {
			all = append(all, *e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockEventRepo) Update(_ context.Context, event *model.Event) error {
	stored, ok := m.events[event.EventID]
	if !ok || stored.Version != event.Version {
		return pkgerrors.ErrOptimisticLock
	}
	event.Version++
	cp := *event
	m.events[event.EventID] = &cp
	return nil
}

func (m *mockEventRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.events, id)
	return nil
}

func (m *mockEventRepo) AddParticipant(_ context.Context, eventID, userID string) error {
	if m.participants[eventID] == nil {
		m.participants[eventID] = make(map[string]time.Time)
	}
	if _, ok := m.participants[eventID][userID]; !ok {
		m.participants[eventID][userID] = m.clock.next()
	}
	return nil
}

func (m *mockEventRepo) IsParticipant(_ context.Context, eventID, userID string) (bool, error) {
	_, ok := m.participants[eventID][userID]
	return ok, nil
}

func (m *mockEventRepo) ListParticipants(_ context.Context, eventID string) ([]model.EventParticipant, error) {
	var result []model.EventParticipant
	for userID, joined := range m.participants[eventID] {
		ep := model.EventParticipant{EventID: eventID, UserID: userID, JoinedAt: joined}
		if u, ok := m.users.users[userID]; ok {
			cp := *u
			ep.User = &cp
		}
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

// ── Mock TopicRepository ──

type mockTopicRepo struct {
	topics map[string]*model.Topic
	votes  *mockTopicVoteRepo
	users  *mockUserRepo
	seq    int
	clock  *mockClock
}

func newMockTopicRepo(votes *mockTopicVoteRepo, users *mockUserRepo, clock *mockClock) *mockTopicRepo {
	return &mockTopicRepo{topics: make(map[string]*model.Topic), votes: votes, users: users, clock: clock}
}

func (m *mockTopicRepo) Create(_ context.Context, topic *model.Topic) error {
	if topic.TopicID == "" {
		m.seq++
		topic.TopicID = fmt.Sprintf("topic-%03d", m.seq)
	}
	topic.CreatedAt = m.clock.next()
	topic.Version = 1
	cp := *topic
	cp.Votes = nil
	m.topics[topic.TopicID] = &cp
	return nil
}

// withVotes 模拟预加载 Author / Votes / Votes.User
func (m *mockTopicRepo) withVotes(t *model.Topic) *model.Topic {
	cp := *t
	if u, ok := m.users.users[t.AuthorID]; ok {
		author := *u
		cp.Author = &author
	}
	cp.Votes = nil
	for _, v := range m.votes.votes {
		if v.TopicID != t.TopicID {
			continue
		}
		vote := *v
		if u, ok := m.users.users[v.UserID]; ok {
			voter := *u
			vote.User = &voter
		}
		cp.Votes = append(cp.Votes, vote)
	}
	return &cp
}

func (m *mockTopicRepo) GetByID(_ context.Context, id string) (*model.Topic, error) {
	if t, ok := m.topics[id]; ok {
		return m.withVotes(t), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTopicRepo) ListByEvent(_ context.Context, eventID string) ([]model.Topic, error) {
	var result []model.Topic
	for _, t := range m.topics {
		if t.EventID == eventID {
			result = append(result, *m.withVotes(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockTopicRepo) Update(_ context.Context, topic *model.Topic) error {
	stored, ok := m.topics[topic.TopicID]
	if !ok || stored.Version != topic.Version {
		return pkgerrors.ErrOptimisticLock
	}
	topic.Version++
	cp := *topic
	cp.Votes = nil
	m.topics[topic.TopicID] = &cp
	return nil
}

func (m *mockTopicRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.topics, id)
	return nil
}

// ── Mock TopicVoteRepository ──

type mockTopicVoteRepo struct {
	votes []*model.TopicVote
	seq   int
	clock *mockClock
}

func newMockTopicVoteRepo(clock *mockClock) *mockTopicVoteRepo {
	return &mockTopicVoteRepo{clock: clock}
}

func (m *mockTopicVoteRepo) Create(_ context.Context, vote *model.TopicVote) error {
	for _, v := range m.votes {
		if v.TopicID == vote.TopicID && v.UserID == vote.UserID {
			return errDuplicate
		}
		if vote.Kind != model.VoteKindLegacy && v.EventID == vote.EventID && v.UserID == vote.UserID && v.Kind == vote.Kind {
			return errDuplicate
		}
	}
	m.seq++
	vote.TopicVoteID = fmt.Sprintf("vote-%03d", m.seq)
	vote.CreatedAt = m.clock.next()
	cp := *vote
	m.votes = append(m.votes, &cp)
	return nil
}

func (m *mockTopicVoteRepo) Get(_ context.Context, topicID, userID string) (*model.TopicVote, error) {
	for _, v := range m.votes {
		if v.TopicID == topicID && v.UserID == userID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTopicVoteRepo) GetPreference(_ context.Context, eventID, userID, kind string) (*model.TopicVote, error) {
	for _, v := range m.votes {
		if v.EventID == eventID && v.UserID == userID && v.Kind == kind {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTopicVoteRepo) ListByUser(_ context.Context, eventID, userID string) ([]model.TopicVote, error) {
	var result []model.TopicVote
	for _, v := range m.votes {
		if v.EventID == eventID && v.UserID == userID {
			result = append(result, *v)
		}
	}
	return result, nil
}

func (m *mockTopicVoteRepo) Delete(_ context.Context, topicVoteID string) error {
	for i, v := range m.votes {
		if v.TopicVoteID == topicVoteID {
			m.votes = append(m.votes[:i], m.votes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockTopicVoteRepo) DeleteByUser(_ context.Context, eventID, userID string) error {
	kept := m.votes[:0]
	for _, v := range m.votes {
		if v.EventID != eventID || v.UserID != userID {
			kept = append(kept, v)
		}
	}
	m.votes = kept
	return nil
}

// ── Mock RoomRepository ──

type mockRoomRepo struct {
	rooms map[string]*model.Room
	seq   int
	clock *mockClock
}

func newMockRoomRepo(clock *mockClock) *mockRoomRepo {
	return &mockRoomRepo{rooms: make(map[string]*model.Room), clock: clock}
}

func (m *mockRoomRepo) Create(_ context.Context, room *model.Room) error {
	if room.RoomID == "" {
		m.seq++
		room.RoomID = fmt.Sprintf("room-%03d", m.seq)
	}
	room.CreatedAt = m.clock.next()
	room.UpdatedAt = room.CreatedAt
	cp := *room
	m.rooms[room.RoomID] = &cp
	return nil
}

func (m *mockRoomRepo) BatchCreate(ctx context.Context, rooms []model.Room) error {
	for i := range rooms {
		if err := m.Create(ctx, &rooms[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRoomRepo) GetByID(_ context.Context, id string) (*model.Room, error) {
	if r, ok := m.rooms[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoomRepo) ListByEvent(_ context.Context, eventID string, onlyAvailable bool) ([]model.Room, error) {
	var result []model.Room
	for _, r := range m.rooms {
		if r.EventID == eventID && (!onlyAvailable || r.IsAvailable) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockRoomRepo) ExistsByName(_ context.Context, eventID, name, excludeID string) (bool, error) {
	for _, r := range m.rooms {
		if r.EventID == eventID && strings.EqualFold(r.Name, name) && r.RoomID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoomRepo) Update(_ context.Context, room *model.Room) error {
	cp := *room
	m.rooms[room.RoomID] = &cp
	return nil
}

func (m *mockRoomRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.rooms, id)
	return nil
}

// ── Mock GroupSnapshotRepository ──

type mockGroupSnapshotRepo struct {
	snapshots   map[string]*model.GroupSnapshot
	assignments *mockGroupAssignmentRepo
	archiveErr  error
	seq         int
	clock       *mockClock
}

func newMockGroupSnapshotRepo(assignments *mockGroupAssignmentRepo, clock *mockClock) *mockGroupSnapshotRepo {
	return &mockGroupSnapshotRepo{
		snapshots:   make(map[string]*model.GroupSnapshot),
		assignments: assignments,
		clock:       clock,
	}
}

func (m *mockGroupSnapshotRepo) Create(_ context.Context, snapshot *model.GroupSnapshot) error {
	for _, s := range m.snapshots {
		if s.EventID == snapshot.EventID && s.Status == model.SnapshotStatusCurrent {
			return errDuplicate
		}
	}
	m.seq++
	snapshot.SnapshotID = fmt.Sprintf("snapshot-%03d", m.seq)
	snapshot.CreatedAt = m.clock.next()
	snapshot.Version = 1
	cp := *snapshot
	cp.Assignments = nil
	m.snapshots[snapshot.SnapshotID] = &cp
	return nil
}

func (m *mockGroupSnapshotRepo) GetCurrent(_ context.Context, eventID string) (*model.GroupSnapshot, error) {
	for _, s := range m.snapshots {
		if s.EventID == eventID && s.Status == model.SnapshotStatusCurrent {
			cp := *s
			cp.Assignments = m.assignments.bySnapshot(s.SnapshotID)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGroupSnapshotRepo) Archive(_ context.Context, snapshot *model.GroupSnapshot, operatorID string) error {
	if m.archiveErr != nil {
		return m.archiveErr
	}
	stored, ok := m.snapshots[snapshot.SnapshotID]
	if !ok || stored.Status != model.SnapshotStatusCurrent || stored.Version != snapshot.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = model.SnapshotStatusArchived
	stored.Version++
	stored.UpdatedBy = &operatorID
	return nil
}

func (m *mockGroupSnapshotRepo) ListByEvent(_ context.Context, eventID string) ([]model.GroupSnapshot, error) {
	var result []model.GroupSnapshot
	for _, s := range m.snapshots {
		if s.EventID == eventID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// ── Mock GroupAssignmentRepository ──

type mockGroupAssignmentRepo struct {
	assignments []model.GroupAssignment
	seq         int
}

func newMockGroupAssignmentRepo() *mockGroupAssignmentRepo {
	return &mockGroupAssignmentRepo{}
}

func (m *mockGroupAssignmentRepo) BatchCreate(_ context.Context, assignments []model.GroupAssignment) error {
	for i := range assignments {
		m.seq++
		assignments[i].AssignmentID = fmt.Sprintf("assignment-%03d", m.seq)
		m.assignments = append(m.assignments, assignments[i])
	}
	return nil
}

func (m *mockGroupAssignmentRepo) bySnapshot(snapshotID string) []model.GroupAssignment {
	var result []model.GroupAssignment
	for _, a := range m.assignments {
		if a.SnapshotID == snapshotID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GroupNumber < result[j].GroupNumber })
	return result
}

// ── Mock GroupChangeLogRepository ──

type mockGroupChangeLogRepo struct {
	logs []model.GroupChangeLog
	seq  int
}

func newMockGroupChangeLogRepo() *mockGroupChangeLogRepo {
	return &mockGroupChangeLogRepo{}
}

func (m *mockGroupChangeLogRepo) BatchCreate(_ context.Context, logs []model.GroupChangeLog) error {
	for i := range logs {
		m.seq++
		logs[i].ChangeLogID = fmt.Sprintf("log-%03d", m.seq)
		m.logs = append(m.logs, logs[i])
	}
	return nil
}

func (m *mockGroupChangeLogRepo) ListByEvent(_ context.Context, eventID string, offset, limit int) ([]model.GroupChangeLog, int64, error) {
	var all []model.GroupChangeLog
	for _, l := range m.logs {
		if l.EventID == eventID {
			all = append(all, l)
		}
	}
	return paginate(all, offset, limit), int64(len(all)), nil
}

// ── Mock SystemConfigRepository ──

type mockSystemConfigRepo struct {
	cfg *model.SystemConfig
}

func newMockSystemConfigRepo() *mockSystemConfigRepo {
	return &mockSystemConfigRepo{}
}

func (m *mockSystemConfigRepo) Get(_ context.Context) (*model.SystemConfig, error) {
	if m.cfg == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *mockSystemConfigRepo) Update(_ context.Context, cfg *model.SystemConfig) error {
	cfg.Singleton = true
	cp := *cfg
	m.cfg = &cp
	return nil
}

// ── 辅助 ──

func paginate[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// ── 测试环境 ──

type testEnv struct {
	repo        *repository.Repository
	users       *mockUserRepo
	events      *mockEventRepo
	topics      *mockTopicRepo
	votes       *mockTopicVoteRepo
	rooms       *mockRoomRepo
	snapshots   *mockGroupSnapshotRepo
	assignments *mockGroupAssignmentRepo
	changeLogs  *mockGroupChangeLogRepo
	sysConfig   *mockSystemConfigRepo
	defaults    *config.GroupingConfig
}

func newTestEnv() *testEnv {
	clock := &mockClock{}
	users := newMockUserRepo(clock)
	votes := newMockTopicVoteRepo(clock)
	assignments := newMockGroupAssignmentRepo()

	env := &testEnv{
		users:       users,
		events:      newMockEventRepo(users, clock),
		topics:      newMockTopicRepo(votes, users, clock),
		votes:       votes,
		rooms:       newMockRoomRepo(clock),
		snapshots:   newMockGroupSnapshotRepo(assignments, clock),
		assignments: assignments,
		changeLogs:  newMockGroupChangeLogRepo(),
		sysConfig:   newMockSystemConfigRepo(),
		defaults: &config.GroupingConfig{
			MaxVotesPerTopic:        3,
			MinParticipantsPerTable: 4,
			GuestEmailDomain:        "guest.test",
			RoundLockTTL:            30 * time.Second,
		},
	}
	env.repo = &repository.Repository{
		User:            env.users,
		Event:           env.events,
		Topic:           env.topics,
		TopicVote:       env.votes,
		Room:            env.rooms,
		GroupSnapshot:   env.snapshots,
		GroupAssignment: env.assignments,
		GroupChangeLog:  env.changeLogs,
		SystemConfig:    env.sysConfig,
	}
	return env
}

func (e *testEnv) settings() *settingsResolver {
	return newSettingsResolver(e.defaults, e.repo, zap.NewNop())
}

// addUser 写入用户；password 为空时不设置密码
func (e *testEnv) addUser(id, name, email, role, password string) *model.User {
	user := &model.User{UserID: id, Name: name, Email: email, Role: role}
	if password != "" {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		user.PasswordHash = string(hash)
	}
	if role == model.RoleGuest {
		user.IsGuest = true
	}
	_ = e.users.Create(context.Background(), user)
	return user
}

// addEvent 写入活动，组织者与 participants 均加入活动
func (e *testEnv) addEvent(id, organizerID, joinCode string, participants ...string) *model.Event {
	event := &model.Event{
		EventID:     id,
		Name:        "Event " + id,
		JoinCode:    joinCode,
		Status:      model.EventStatusOpen,
		OrganizerID: organizerID,
	}
	_ = e.events.Create(context.Background(), event)
	_ = e.events.AddParticipant(context.Background(), id, organizerID)
	for _, p := range participants {
		_ = e.events.AddParticipant(context.Background(), id, p)
	}
	return event
}

func (e *testEnv) addTopic(id, eventID, authorID, title string, selected bool) *model.Topic {
	topic := &model.Topic{
		TopicID:          id,
		EventID:          eventID,
		Title:            title,
		AuthorID:         authorID,
		SelectedForRound: selected,
	}
	_ = e.topics.Create(context.Background(), topic)
	return topic
}

func (e *testEnv) vote(topicID, userID, kind string) {
	topic := e.topics.topics[topicID]
	_ = e.votes.Create(context.Background(), &model.TopicVote{
		TopicID: topicID,
		EventID: topic.EventID,
		UserID:  userID,
		Kind:    kind,
	})
}

func (e *testEnv) addRoom(id, eventID, name string, capacity int, available bool) *model.Room {
	room := &model.Room{
		RoomID:      id,
		EventID:     eventID,
		Name:        name,
		Capacity:    capacity,
		Location:    "Floor 1",
		IsAvailable: available,
	}
	_ = e.rooms.Create(context.Background(), room)
	return room
}

// addParticipants 批量创建参与者并加入活动，返回 user_id
func (e *testEnv) addParticipants(eventID, prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		id := fmt.Sprintf("%s-%d", prefix, i+1)
		e.addUser(id, fmt.Sprintf("%s %d", prefix, i+1), id+"@example.com", model.RoleParticipant, "")
		_ = e.events.AddParticipant(context.Background(), eventID, id)
		ids[i] = id
	}
	return ids
}
