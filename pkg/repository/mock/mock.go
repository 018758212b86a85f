package mock

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/qaforum/pkg/models"
	"github.com/garnizeh/qaforum/pkg/repository"
)

// Test helpers and mocks
type Mocks struct {
	Users       *UserRepo
	Invitations *InvitationRepo
	Forum       *ForumRepo
}

func NewMocks() *Mocks {
	inv := &InvitationRepo{codes: map[string]models.InvitationCode{}}
	return &Mocks{
		Users:       &UserRepo{users: map[string]models.User{}, invitations: inv},
		Invitations: inv,
		Forum:       &ForumRepo{},
	}
}

var (
	_ repository.UserRepo       = (*UserRepo)(nil)
	_ repository.RoleRepo       = (*UserRepo)(nil)
	_ repository.InvitationRepo = (*InvitationRepo)(nil)
	_ repository.ForumRepo      = (*ForumRepo)(nil)
)

// UserRepo keeps users and their roles in memory. Set Err to make every call fail.
type UserRepo struct {
	mu          sync.Mutex
	users       map[string]models.User
	nextID      int64
	invitations *InvitationRepo
	Err         error
}

func (m *UserRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(u)
}

func (m *UserRepo) CreateUserWithInvitation(ctx context.Context, u *models.User, code string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.users[u.Username]; ok {
		return 0, fmt.Errorf("username %s already exists", u.Username)
	}
	ok, err := m.invitations.MarkInvitationUsed(ctx, code, u.Username, at)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, repository.ErrInvitationUnavailable
	}
	return m.create(u)
}

func (m *UserRepo) create(u *models.User) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}
	if _, ok := m.users[u.Username]; ok {
		return 0, fmt.Errorf("username %s already exists", u.Username)
	}
	m.nextID++
	u.ID = m.nextID
	stored := *u
	stored.Roles = slices.Clone(u.Roles)
	m.users[u.Username] = stored
	return u.ID, nil
}

func (m *UserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	u.Roles = slices.Clone(u.Roles)
	slices.Sort(u.Roles)
	return &u, nil
}

func (m *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		u.Roles = slices.Clone(u.Roles)
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b models.User) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (m *UserRepo) CountUsers(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), m.Err
}

func (m *UserRepo) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	stored, ok := m.users[u.Username]
	if !ok {
		return nil
	}
	stored.FirstName, stored.LastName, stored.Email = u.FirstName, u.LastName, u.Email
	m.users[u.Username] = stored
	return nil
}

func (m *UserRepo) UpdateCredentials(ctx context.Context, username, passwordHash, otpHash string, mustChange bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	stored, ok := m.users[username]
	if !ok {
		return nil
	}
	stored.PasswordHash, stored.OneTimePassword, stored.MustChangePassword = passwordHash, otpHash, mustChange
	m.users[username] = stored
	return nil
}

func (m *UserRepo) DeleteUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.users, username)
	return nil
}

func (m *UserRepo) GetRoles(ctx context.Context, username string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	roles := slices.Clone(m.users[username].Roles)
	if roles == nil {
		roles = []string{}
	}
	slices.Sort(roles)
	return roles, nil
}

func (m *UserRepo) AddRole(ctx context.Context, username, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.users[username]
	role = strings.ToLower(role)
	if !ok || slices.Contains(u.Roles, role) {
		return nil
	}
	u.Roles = append(slices.Clone(u.Roles), role)
	m.users[username] = u
	return nil
}

func (m *UserRepo) RemoveRole(ctx context.Context, username, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.users[username]
	if !ok {
		return nil
	}
	role = strings.ToLower(role)
	u.Roles = slices.DeleteFunc(slices.Clone(u.Roles), func(r string) bool { return r == role })
	m.users[username] = u
	return nil
}

func (m *UserRepo) CountUsersWithRole(ctx context.Context, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if slices.Contains(u.Roles, strings.ToLower(role)) {
			n++
		}
	}
	return n, m.Err
}

type InvitationRepo struct {
	mu    sync.Mutex
	codes map[string]models.InvitationCode
}

func (m *InvitationRepo) CreateInvitation(ctx context.Context, c *models.InvitationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[c.Code]; ok {
		return fmt.Errorf("invitation %s already exists", c.Code)
	}
	m.codes[c.Code] = *c
	return nil
}

func (m *InvitationRepo) GetInvitation(ctx context.Context, code string) (*models.InvitationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *InvitationRepo) MarkInvitationUsed(ctx context.Context, code, usedBy string, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok || !c.Usable(usedAt) {
		return false, nil
	}
	c.Used, c.UsedBy, c.UsedAt = true, usedBy, &usedAt
	m.codes[code] = c
	return true, nil
}

func (m *InvitationRepo) DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for code, c := range m.codes {
		if !c.Used && !now.Before(c.Deadline) {
			delete(m.codes, code)
			n++
		}
	}
	return n, nil
}

// ForumRepo records every change it receives and folds it into Snapshot the
// way the SQLite journal does: deletes first, then upserts. Set Err to make
// writes fail.
type ForumRepo struct {
	mu       sync.Mutex
	Changes  []models.ForumChange
	Snapshot models.ForumSnapshot
	Err      error
}

func (m *ForumRepo) ApplyForumChange(ctx context.Context, change models.ForumChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Changes = append(m.Changes, change)

	snap := &m.Snapshot
	snap.Replies = deleteByID(snap.Replies, change.DeletedReplies, func(r models.Reply) string { return r.ID })
	snap.Answers = deleteByID(snap.Answers, change.DeletedAnswers, func(a models.Answer) string { return a.ID })
	snap.Questions = deleteByID(snap.Questions, change.DeletedQuestions, func(q models.Question) string { return q.ID })
	for _, q := range change.Questions {
		snap.Questions = upsertByID(snap.Questions, q, func(q models.Question) string { return q.ID })
	}
	for _, a := range change.Answers {
		snap.Answers = upsertByID(snap.Answers, a, func(a models.Answer) string { return a.ID })
	}
	for _, r := range change.Replies {
		snap.Replies = upsertByID(snap.Replies, r, func(r models.Reply) string { return r.ID })
	}
	return nil
}

func deleteByID[T any](rows []T, ids []string, id func(T) string) []T {
	if len(ids) == 0 {
		return rows
	}
	return slices.DeleteFunc(rows, func(row T) bool { return slices.Contains(ids, id(row)) })
}

func upsertByID[T any](rows []T, row T, id func(T) string) []T {
	if i := slices.IndexFunc(rows, func(r T) bool { return id(r) == id(row) }); i >= 0 {
		rows[i] = row
		return rows
	}
	return append(rows, row)
}

func (m *ForumRepo) LoadForum(ctx context.Context) (models.ForumSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Snapshot, m.Err
}
