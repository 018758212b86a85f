package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/qaforum/internal/identity"
	"github.com/garnizeh/qaforum/pkg/models"
	"github.com/garnizeh/qaforum/pkg/repository/mock"
)

const goodPassword = "Passw0rd!"

type fakeScheduler struct {
	mu    sync.Mutex
	calls []time.Time
	types []string
}

func (f *fakeScheduler) Schedule(_ context.Context, typ string, _ any, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, at)
	f.types = append(f.types, typ)
	return int64(len(f.calls)), nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newProvider(t *testing.T) (*identity.Provider, *mock.Mocks, *clock, *fakeScheduler) {
	t.Helper()
	m := mock.NewMocks()
	c := &clock{t: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)}
	s := &fakeScheduler{}
	p := identity.New(m.Users, m.Users, m.Invitations, nil,
		identity.WithHashCost(bcrypt.MinCost),
		identity.WithClock(c.now),
		identity.WithScheduler(s),
	)
	return p, m, c, s
}

func register(t *testing.T, p *identity.Provider, username string, roles ...string) models.User {
	t.Helper()
	u, err := p.Register(context.Background(), identity.Registration{Username: username, Password: goodPassword, Roles: roles})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func TestRegister(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()

	u := register(t, p, "alice")
	if !u.HasRole(models.RoleStudent) || len(u.Roles) != 1 {
		t.Fatalf("expected default student role, got %v", u.Roles)
	}
	if u.PasswordHash == goodPassword || u.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}

	tests := []struct {
		name string
		reg  identity.Registration
		want error
	}{
		{"duplicate", identity.Registration{Username: "alice", Password: goodPassword}, identity.ErrUserExists},
		{"bad username", identity.Registration{Username: "1x", Password: goodPassword}, identity.ErrInvalidInput},
		{"weak password", identity.Registration{Username: "bobby", Password: "password"}, identity.ErrInvalidInput},
		{"bad email", identity.Registration{Username: "bobby", Password: goodPassword, Email: "nope"}, identity.ErrInvalidInput},
		{"unknown role", identity.Registration{Username: "bobby", Password: goodPassword, Roles: []string{"wizard"}}, identity.ErrUnknownRole},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Register(ctx, tc.reg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	exists, err := p.UserExists(ctx, "bobby")
	if err != nil || exists {
		t.Fatalf("failed registrations must not create accounts")
	}
}

func TestBootstrap(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()

	admin, err := p.Bootstrap(ctx, identity.Registration{Username: "root", Password: goodPassword})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !admin.HasRole(models.RoleAdmin) {
		t.Fatalf("first account must be admin, got %v", admin.Roles)
	}
	if _, err := p.Bootstrap(ctx, identity.Registration{Username: "again", Password: goodPassword}); !errors.Is(err, identity.ErrBootstrapped) {
		t.Fatalf("expected ErrBootstrapped, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()
	register(t, p, "alice", models.RoleStudent, models.RoleReviewer)

	if _, err := p.Authenticate(ctx, "alice", goodPassword, ""); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := p.Authenticate(ctx, "alice", goodPassword, models.RoleReviewer); err != nil {
		t.Fatalf("Authenticate with held role: %v", err)
	}

	tests := []struct {
		name, user, pass, role string
	}{
		{"wrong password", "alice", "Wrong0rd!", ""},
		{"unknown user", "nobody", goodPassword, ""},
		{"role not held", "alice", goodPassword, models.RoleAdmin},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Authenticate(ctx, tc.user, tc.pass, tc.role); !errors.Is(err, identity.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestOneTimePasswordFlow(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()
	register(t, p, "alice")

	otp, err := p.SetOneTimePassword(ctx, "alice")
	if err != nil {
		t.Fatalf("SetOneTimePassword: %v", err)
	}
	if len(otp) != 8 {
		t.Fatalf("expected 8 character otp, got %q", otp)
	}

	u, err := p.Authenticate(ctx, "alice", otp, "")
	if err != nil {
		t.Fatalf("otp sign-in: %v", err)
	}
	if !u.MustChangePassword {
		t.Fatalf("otp sign-in must require a password change")
	}
	if _, err := p.Authenticate(ctx, "alice", goodPassword, ""); err != nil {
		t.Fatalf("old password still valid until changed: %v", err)
	}

	if err := p.UpdatePassword(ctx, "alice", "weak"); !errors.Is(err, identity.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for weak password, got %v", err)
	}
	if err := p.UpdatePassword(ctx, "alice", "N3w-Secret"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if _, err := p.Authenticate(ctx, "alice", otp, ""); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("otp must be cleared by a password change, got %v", err)
	}
	u, err = p.Authenticate(ctx, "alice", "N3w-Secret", "")
	if err != nil || u.MustChangePassword {
		t.Fatalf("new password sign-in: %+v, %v", u, err)
	}
}

func TestUpdateUser(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()
	register(t, p, "alice")

	u, err := p.UpdateUser(ctx, "alice", identity.Profile{FirstName: " Alice ", LastName: "Liddell", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.FullName() != "Alice Liddell" {
		t.Fatalf("unexpected name %q", u.FullName())
	}
	if _, err := p.UpdateUser(ctx, "alice", identity.Profile{Email: "bad"}); !errors.Is(err, identity.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := p.UpdateUser(ctx, "ghost", identity.Profile{}); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRoleManagement(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()
	register(t, p, "root", models.RoleAdmin)
	register(t, p, "alice")

	if err := p.AddRoleToUser(ctx, "alice", "Instructor"); err != nil {
		t.Fatalf("AddRoleToUser: %v", err)
	}
	if ok, _ := p.HasRole(ctx, "alice", models.RoleInstructor); !ok {
		t.Fatalf("expected alice to be an instructor")
	}
	if err := p.AddRoleToUser(ctx, "alice", "wizard"); !errors.Is(err, identity.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if err := p.AddRoleToUser(ctx, "ghost", models.RoleStaff); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := p.RemoveRoleFromUser(ctx, "root", models.RoleAdmin, "root"); !errors.Is(err, identity.ErrSelfDemote) {
		t.Fatalf("expected ErrSelfDemote, got %v", err)
	}
	if err := p.RemoveRoleFromUser(ctx, "root", models.RoleAdmin, "alice"); !errors.Is(err, identity.ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}

	if err := p.AddRoleToUser(ctx, "alice", models.RoleAdmin); err != nil {
		t.Fatalf("promote alice: %v", err)
	}
	if err := p.RemoveRoleFromUser(ctx, "root", models.RoleAdmin, "alice"); err != nil {
		t.Fatalf("demote root with another admin present: %v", err)
	}
	roles, err := p.GetUserRoles(ctx, "root")
	if err != nil || len(roles) != 0 {
		t.Fatalf("expected root without roles, got %v, %v", roles, err)
	}
}

func TestDeleteUser(t *testing.T) {
	p, _, _, _ := newProvider(t)
	ctx := context.Background()
	register(t, p, "root", models.RoleAdmin)
	register(t, p, "alice")

	if err := p.DeleteUser(ctx, "root", "root"); !errors.Is(err, identity.ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}
	// The acting user being someone else does not bypass the last-admin check.
	if err := p.DeleteUser(ctx, "root", "alice"); !errors.Is(err, identity.ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if err := p.DeleteUser(ctx, "ghost", "root"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := p.DeleteUser(ctx, "alice", "root"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if ok, _ := p.UserExists(ctx, "alice"); ok {
		t.Fatalf("alice should be gone")
	}
	users, err := p.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers: %v, %v", users, err)
	}
}

func TestInvitationLifecycle(t *testing.T) {
	p, _, c, s := newProvider(t)
	ctx := context.Background()

	if _, err := p.GenerateInvitationCode(ctx, "root", 0); !errors.Is(err, identity.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero days, got %v", err)
	}

	code, err := p.GenerateInvitationCode(ctx, "root", 2)
	if err != nil {
		t.Fatalf("GenerateInvitationCode: %v", err)
	}
	if len(code.Code) != 4 || code.Code != normalize(code.Code) {
		t.Fatalf("expected 4 uppercase characters, got %q", code.Code)
	}
	if !code.Deadline.Equal(c.t.Add(48 * time.Hour)) {
		t.Fatalf("unexpected deadline %v", code.Deadline)
	}
	if len(s.calls) != 1 || !s.calls[0].Equal(code.Deadline) || s.types[0] != identity.JobPurgeExpiredInvitations {
		t.Fatalf("expected a purge job at the deadline, got %v %v", s.calls, s.types)
	}

	if ok, _ := p.ValidateInvitationCode(ctx, code.Code); !ok {
		t.Fatalf("fresh code must validate")
	}

	u, err := p.RegisterWithInvitation(ctx, code.Code, identity.Registration{Username: "newbie", Password: goodPassword, Roles: []string{models.RoleAdmin}})
	if err != nil {
		t.Fatalf("RegisterWithInvitation: %v", err)
	}
	if u.HasRole(models.RoleAdmin) || !u.HasRole(models.RoleStudent) {
		t.Fatalf("invited users are students only, got %v", u.Roles)
	}

	if ok, _ := p.ValidateInvitationCode(ctx, code.Code); ok {
		t.Fatalf("used code must not validate")
	}
	if _, err := p.RegisterWithInvitation(ctx, code.Code, identity.Registration{Username: "second", Password: goodPassword}); !errors.Is(err, identity.ErrInvalidInvitation) {
		t.Fatalf("expected ErrInvalidInvitation, got %v", err)
	}
}

func TestInvitationExpiryAndPurge(t *testing.T) {
	p, _, c, _ := newProvider(t)
	ctx := context.Background()

	code, err := p.GenerateInvitationCode(ctx, "root", 1)
	if err != nil {
		t.Fatalf("GenerateInvitationCode: %v", err)
	}
	keep, err := p.GenerateInvitationCode(ctx, "root", 7)
	if err != nil {
		t.Fatalf("GenerateInvitationCode: %v", err)
	}

	c.t = c.t.Add(25 * time.Hour)
	if ok, _ := p.ValidateInvitationCode(ctx, code.Code); ok {
		t.Fatalf("expired code must not validate")
	}
	if err := p.UseInvitationCode(ctx, code.Code, "late"); !errors.Is(err, identity.ErrInvalidInvitation) {
		t.Fatalf("expected ErrInvalidInvitation, got %v", err)
	}

	n, err := p.PurgeExpiredInvitations(ctx)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredInvitations: %d, %v", n, err)
	}
	if err := p.UseInvitationCode(ctx, " "+keep.Code+" ", "someone"); err != nil {
		t.Fatalf("UseInvitationCode with whitespace: %v", err)
	}
}

func normalize(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 'a' + 'A'
		}
	}
	return string(out)
}
