// Package identity manages accounts, roles and invitation codes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/qaforum/internal/validate"
	"github.com/garnizeh/qaforum/pkg/models"
	"github.com/garnizeh/qaforum/pkg/repository"
)

// JobPurgeExpiredInvitations is the job type scheduled for each invitation
// deadline.
const JobPurgeExpiredInvitations = "invitations.purge_expired"

const (
	invitationCodeLength = 4
	otpLength            = 8
	maxInvitationDays    = 365
)

// Scheduler runs a background job of type typ at the given time.
type Scheduler interface {
	Schedule(ctx context.Context, typ string, payload any, at time.Time) (int64, error)
}

// Registration carries the fields of a new account.
type Registration struct {
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles,omitempty"`
}

// Profile holds the user-editable account fields.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Provider struct {
	users       repository.UserRepo
	roles       repository.RoleRepo
	invitations repository.InvitationRepo
	scheduler   Scheduler
	logger      *slog.Logger
	now         func() time.Time
	hashCost    int

	// mu serialises operations that must keep at least one admin.
	mu sync.Mutex
}

type Option func(*Provider)

func WithScheduler(s Scheduler) Option { return func(p *Provider) { p.scheduler = s } }

func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option { return func(p *Provider) { p.hashCost = cost } }

func New(users repository.UserRepo, roles repository.RoleRepo, invitations repository.InvitationRepo, logger *slog.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Provider{
		users:       users,
		roles:       roles,
		invitations: invitations,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		hashCost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) UserExists(ctx context.Context, username string) (bool, error) {
	u, err := p.users.GetUserByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

func (p *Provider) GetUser(ctx context.Context, username string) (models.User, error) {
	u, err := p.lookup(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	return *u, nil
}

func (p *Provider) ListUsers(ctx context.Context) ([]models.User, error) {
	return p.users.ListUsers(ctx)
}

// Register creates an account. Without explicit roles the account is a student.
func (p *Provider) Register(ctx context.Context, reg Registration) (models.User, error) {
	u, err := p.prepare(ctx, reg)
	if err != nil {
		return models.User{}, err
	}
	if _, err := p.users.CreateUser(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	p.logger.Info("user registered", slog.String("username", u.Username), slog.Any("roles", u.Roles))
	return *u, nil
}

// RegisterWithInvitation redeems code and creates a student account in one step.
func (p *Provider) RegisterWithInvitation(ctx context.Context, code string, reg Registration) (models.User, error) {
	reg.Roles = []string{models.RoleStudent}
	u, err := p.prepare(ctx, reg)
	if err != nil {
		return models.User{}, err
	}
	code = normalizeCode(code)
	if _, err := p.users.CreateUserWithInvitation(ctx, u, code, p.now()); err != nil {
		if errors.Is(err, repository.ErrInvitationUnavailable) {
			return models.User{}, fmt.Errorf("%w: %s", ErrInvalidInvitation, code)
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	p.logger.Info("user registered with invitation", slog.String("username", u.Username), slog.String("code", code))
	return *u, nil
}

// Bootstrap creates the first account as an admin. It fails once any
// account exists.
func (p *Provider) Bootstrap(ctx context.Context, reg Registration) (models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.users.CountUsers(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return models.User{}, ErrBootstrapped
	}
	reg.Roles = []string{models.RoleAdmin}
	return p.Register(ctx, reg)
}

// Authenticate checks password, or the one-time password when one is set.
// A non-empty role must be held by the account.
func (p *Provider) Authenticate(ctx context.Context, username, password, role string) (models.User, error) {
	u, err := p.users.GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if u == nil {
		return models.User{}, ErrInvalidCredentials
	}

	ok := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
	if !ok && u.OneTimePassword != "" {
		ok = bcrypt.CompareHashAndPassword([]byte(u.OneTimePassword), []byte(password)) == nil
		if ok {
			u.MustChangePassword = true
			p.logger.Info("signed in with one-time password", slog.String("username", username))
		}
	}
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if role != "" && !u.HasRole(role) {
		return models.User{}, fmt.Errorf("%w: %s does not hold role %s", ErrInvalidCredentials, username, role)
	}
	return *u, nil
}

func (p *Provider) UpdateUser(ctx context.Context, username string, prof Profile) (models.User, error) {
	u, err := p.lookup(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if err := validate.CheckEmail(prof.Email); err != nil {
		return models.User{}, err
	}
	u.FirstName = strings.TrimSpace(prof.FirstName)
	u.LastName = strings.TrimSpace(prof.LastName)
	u.Email = strings.TrimSpace(prof.Email)
	if err := p.users.UpdateUser(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return *u, nil
}

// UpdatePassword sets a new password and clears any one-time password.
func (p *Provider) UpdatePassword(ctx context.Context, username, newPassword string) error {
	if _, err := p.lookup(ctx, username); err != nil {
		return err
	}
	if res := validate.CheckPassword(newPassword); !res.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidInput, res.Message)
	}
	hash, err := p.hash(newPassword)
	if err != nil {
		return err
	}
	if err := p.users.UpdateCredentials(ctx, username, hash, "", false); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	p.logger.Info("password updated", slog.String("username", username))
	return nil
}

// SetOneTimePassword issues a temporary password and flags the account for a
// password change. The plain value is returned once and stored only hashed.
func (p *Provider) SetOneTimePassword(ctx context.Context, username string) (string, error) {
	u, err := p.lookup(ctx, username)
	if err != nil {
		return "", err
	}
	otp := randomToken(otpLength, false)
	hash, err := p.hash(otp)
	if err != nil {
		return "", err
	}
	if err := p.users.UpdateCredentials(ctx, username, u.PasswordHash, hash, true); err != nil {
		return "", fmt.Errorf("set one-time password: %w", err)
	}
	p.logger.Info("one-time password issued", slog.String("username", username))
	return otp, nil
}

func (p *Provider) GetUserRoles(ctx context.Context, username string) ([]string, error) {
	if _, err := p.lookup(ctx, username); err != nil {
		return nil, err
	}
	return p.roles.GetRoles(ctx, username)
}

func (p *Provider) HasRole(ctx context.Context, username, role string) (bool, error) {
	roles, err := p.GetUserRoles(ctx, username)
	if err != nil {
		return false, err
	}
	return (models.User{Roles: roles}).HasRole(role), nil
}

func (p *Provider) AddRoleToUser(ctx context.Context, username, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !models.IsKnownRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if _, err := p.lookup(ctx, username); err != nil {
		return err
	}
	if err := p.roles.AddRole(ctx, username, role); err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	p.logger.Info("role added", slog.String("username", username), slog.String("role", role))
	return nil
}

// RemoveRoleFromUser refuses to let an admin drop their own admin role or
// the last admin lose it.
func (p *Provider) RemoveRoleFromUser(ctx context.Context, username, role, actingAdmin string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !models.IsKnownRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := guardSelfDemote(username, role, actingAdmin); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.lookup(ctx, username)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		if err := p.guardLastAdmin(ctx, u); err != nil {
			return err
		}
	}
	if err := p.roles.RemoveRole(ctx, username, role); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	p.logger.Info("role removed", slog.String("username", username), slog.String("role", role))
	return nil
}

// DeleteUser removes username. Admins cannot delete themselves and the last
// admin cannot be deleted.
func (p *Provider) DeleteUser(ctx context.Context, username, actingAdmin string) error {
	if err := guardSelfDelete(username, actingAdmin); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.lookup(ctx, username)
	if err != nil {
		return err
	}
	if err := p.guardLastAdmin(ctx, u); err != nil {
		return err
	}
	if err := p.users.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	p.logger.Info("user deleted", slog.String("username", username), slog.String("by", actingAdmin))
	return nil
}

// GenerateInvitationCode creates a four character code valid for daysValid
// days and schedules its purge.
func (p *Provider) GenerateInvitationCode(ctx context.Context, createdBy string, daysValid int) (models.InvitationCode, error) {
	if daysValid < 1 || daysValid > maxInvitationDays {
		return models.InvitationCode{}, fmt.Errorf("%w: days valid must be between 1 and %d", ErrInvalidInput, maxInvitationDays)
	}

	now := p.now()
	c := models.InvitationCode{
		CreatedBy: createdBy,
		Deadline:  now.Add(time.Duration(daysValid) * 24 * time.Hour),
		Created:   now,
	}
	for attempt := 0; ; attempt++ {
		c.Code = randomToken(invitationCodeLength, true)
		existing, err := p.invitations.GetInvitation(ctx, c.Code)
		if err != nil {
			return models.InvitationCode{}, err
		}
		if existing == nil {
			break
		}
		if attempt >= 10 {
			return models.InvitationCode{}, fmt.Errorf("could not allocate a unique invitation code")
		}
	}
	if err := p.invitations.CreateInvitation(ctx, &c); err != nil {
		return models.InvitationCode{}, fmt.Errorf("create invitation: %w", err)
	}

	if p.scheduler != nil {
		if _, err := p.scheduler.Schedule(ctx, JobPurgeExpiredInvitations, map[string]string{"code": c.Code}, c.Deadline); err != nil {
			p.logger.Warn("schedule invitation purge", slog.String("code", c.Code), slog.Any("err", err))
		}
	}
	p.logger.Info("invitation generated", slog.String("code", c.Code), slog.String("by", createdBy), slog.Time("deadline", c.Deadline))
	return c, nil
}

// ValidateInvitationCode reports whether code exists, is unused and has not
// expired.
func (p *Provider) ValidateInvitationCode(ctx context.Context, code string) (bool, error) {
	c, err := p.invitations.GetInvitation(ctx, normalizeCode(code))
	if err != nil {
		return false, err
	}
	return c != nil && c.Usable(p.now()), nil
}

func (p *Provider) UseInvitationCode(ctx context.Context, code, usedBy string) error {
	code = normalizeCode(code)
	ok, err := p.invitations.MarkInvitationUsed(ctx, code, usedBy, p.now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidInvitation, code)
	}
	return nil
}

// PurgeExpiredInvitations deletes unused codes past their deadline.
func (p *Provider) PurgeExpiredInvitations(ctx context.Context) (int64, error) {
	n, err := p.invitations.DeleteExpiredInvitations(ctx, p.now())
	if err != nil {
		return 0, fmt.Errorf("purge invitations: %w", err)
	}
	if n > 0 {
		p.logger.Info("expired invitations purged", slog.Int64("count", n))
	}
	return n, nil
}

func (p *Provider) lookup(ctx context.Context, username string) (*models.User, error) {
	u, err := p.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return u, nil
}

// prepare validates reg and builds the user row with a hashed password.
func (p *Provider) prepare(ctx context.Context, reg Registration) (*models.User, error) {
	if msg := validate.CheckUsername(reg.Username); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	}
	if res := validate.CheckPassword(reg.Password); !res.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, res.Message)
	}

	roles := make([]string, 0, len(reg.Roles))
	for _, r := range reg.Roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if !models.IsKnownRole(r) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, r)
		}
		roles = append(roles, r)
	}
	if len(roles) == 0 {
		roles = []string{models.RoleStudent}
	}

	u := &models.User{
		Username:  reg.Username,
		FirstName: strings.TrimSpace(reg.FirstName),
		LastName:  strings.TrimSpace(reg.LastName),
		Email:     strings.TrimSpace(reg.Email),
		Roles:     roles,
	}
	if err := validate.User(*u); err != nil {
		return nil, err
	}

	exists, err := p.UserExists(ctx, reg.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, reg.Username)
	}

	if u.PasswordHash, err = p.hash(reg.Password); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Provider) hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), p.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// randomToken takes n characters from a random UUID.
func randomToken(n int, upper bool) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
	if upper {
		return strings.ToUpper(s)
	}
	return s
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
