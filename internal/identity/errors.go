package identity

import (
	"errors"

	"github.com/garnizeh/qaforum/internal/validate"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInvitation  = errors.New("invalid or expired invitation code")
	ErrSelfDelete         = errors.New("admins cannot delete their own account")
	ErrSelfDemote         = errors.New("admins cannot remove their own admin role")
	ErrLastAdmin          = errors.New("at least one admin must remain")
	ErrBootstrapped       = errors.New("an account already exists")
	ErrInvalidInput       = validate.ErrInvalid
	ErrUnknownRole        = errors.New("unknown role")
)
