package validate

import (
	"errors"
	"testing"

	"github.com/garnizeh/qaforum/pkg/models"
)

func TestCheckEmail(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"", false},
		{"  ", false},
		{"alice@example.com", false},
		{"first.last+tag@uni.edu", false},
		{"no-at-sign", true},
		{"two@@example.com", true},
		{"alice@", true},
	}
	for _, tc := range tests {
		err := CheckEmail(tc.input)
		if (err != nil) != tc.wantErr {
			t.Fatalf("CheckEmail(%q) err=%v wantErr=%v", tc.input, err, tc.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	}
}

func TestUser(t *testing.T) {
	tests := []struct {
		name    string
		user    models.User
		wantErr bool
	}{
		{"valid", models.User{Username: "alice", Email: "a@example.com", Roles: []string{models.RoleStudent}}, false},
		{"no email", models.User{Username: "alice"}, false},
		{"missing username", models.User{}, true},
		{"bad username", models.User{Username: "1alice"}, true},
		{"bad email", models.User{Username: "alice", Email: "nope"}, true},
		{"unknown role", models.User{Username: "alice", Roles: []string{"wizard"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := User(tc.user)
			if (err != nil) != tc.wantErr {
				t.Fatalf("User() err=%v wantErr=%v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
