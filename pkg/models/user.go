package models

import (
	"slices"
	"strings"
	"time"
)

// Role names understood by the identity provider.
const (
	RoleAdmin      = "admin"
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleStaff      = "staff"
	RoleReviewer   = "reviewer"
)

// KnownRoles lists every assignable role.
var KnownRoles = []string{RoleAdmin, RoleStudent, RoleInstructor, RoleStaff, RoleReviewer}

// IsKnownRole reports whether role (case-insensitive) is assignable.
func IsKnownRole(role string) bool {
	return slices.Contains(KnownRoles, strings.ToLower(role))
}

// User is an account known to the identity provider. The username and role
// tags refer to validators registered by internal/validate.
type User struct {
	ID                 int64     `json:"id" db:"id"`
	Username           string    `json:"username" db:"username" validate:"required,username"`
	PasswordHash       string    `json:"-" db:"password_hash"`
	FirstName          string    `json:"first_name" db:"first_name"`
	LastName           string    `json:"last_name" db:"last_name"`
	Email              string    `json:"email" db:"email" validate:"omitempty,email"`
	OneTimePassword    string    `json:"-" db:"otp_hash"`
	MustChangePassword bool      `json:"must_change_password" db:"must_change_password"`
	Roles              []string  `json:"roles" validate:"dive,role"`
	Created            time.Time `json:"created" db:"created"`
	Updated            time.Time `json:"updated" db:"updated"`
}

// FullName joins the non-blank name parts; it is empty when both are blank.
func (u User) FullName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, strings.ToLower(role))
}

type InvitationCode struct {
	Code      string     `json:"code" db:"code"`
	CreatedBy string     `json:"created_by" db:"created_by"`
	Deadline  time.Time  `json:"deadline" db:"deadline"`
	Used      bool       `json:"used" db:"used"`
	UsedBy    string     `json:"used_by,omitempty" db:"used_by"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	Created   time.Time  `json:"created" db:"created"`
}

// Usable reports whether the code can still be redeemed at now.
func (c InvitationCode) Usable(now time.Time) bool {
	return !c.Used && now.Before(c.Deadline)
}
