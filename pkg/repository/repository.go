package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/qaforum/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups return (nil, nil) when the row does not exist.

// ErrInvitationUnavailable is returned when an invitation code is unknown,
// already used or expired at redemption time.
var ErrInvitationUnavailable = errors.New("invitation code unavailable")

type UserRepo interface {
	// CreateUser inserts the user and its roles in one transaction.
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	// CreateUserWithInvitation redeems code and creates the user atomically.
	CreateUserWithInvitation(ctx context.Context, u *models.User, code string, at time.Time) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	// UpdateUser writes the profile fields: names and email.
	UpdateUser(ctx context.Context, u *models.User) error
	UpdateCredentials(ctx context.Context, username, passwordHash, otpHash string, mustChange bool) error
	DeleteUser(ctx context.Context, username string) error
}

type RoleRepo interface {
	GetRoles(ctx context.Context, username string) ([]string, error)
	AddRole(ctx context.Context, username, role string) error
	RemoveRole(ctx context.Context, username, role string) error
	CountUsersWithRole(ctx context.Context, role string) (int64, error)
}

type InvitationRepo interface {
	CreateInvitation(ctx context.Context, c *models.InvitationCode) error
	GetInvitation(ctx context.Context, code string) (*models.InvitationCode, error)
	// MarkInvitationUsed redeems code if it is unused and not expired at
	// usedAt. It reports false when nothing was redeemed.
	MarkInvitationUsed(ctx context.Context, code, usedBy string, usedAt time.Time) (bool, error)
	DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error)
}

type ForumRepo interface {
	// ApplyForumChange writes every row of change in one transaction.
	ApplyForumChange(ctx context.Context, change models.ForumChange) error
	LoadForum(ctx context.Context) (models.ForumSnapshot, error)
}
