package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/qaforum/pkg/models"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"TitleEmpty", models.ValidateTitle, "", models.MsgTitleEmpty},
		{"TitleBlank", models.ValidateTitle, "   \t", models.MsgTitleEmpty},
		{"TitleAtLimit", models.ValidateTitle, strings.Repeat("t", 150), ""},
		{"TitleOverLimit", models.ValidateTitle, strings.Repeat("t", 151), models.MsgLimitExceeded},
		{"TitleMultibyteAtLimit", models.ValidateTitle, strings.Repeat("é", 150), ""},
		{"BodyAtLimit", models.ValidateBody, strings.Repeat("b", 5000), ""},
		{"BodyOverLimit", models.ValidateBody, strings.Repeat("b", 5001), models.MsgLimitExceeded},
		{"BodyEmpty", models.ValidateBody, "", models.MsgBodyEmpty},
		{"AnswerEmpty", models.ValidateAnswerContent, " ", models.MsgAnswerEmpty},
		{"AnswerOverLimit", models.ValidateAnswerContent, strings.Repeat("a", 5001), models.MsgLimitExceeded},
		{"ReplyAtLimit", models.ValidateReplyContent, strings.Repeat("r", 2000), ""},
		{"ReplyOverLimit", models.ValidateReplyContent, strings.Repeat("r", 2001), models.MsgLimitExceeded},
		{"ReplyEmpty", models.ValidateReplyContent, "", models.MsgReplyEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestUserFullName(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"", "", ""},
		{"Ada", "", "Ada"},
		{"", "Lovelace", "Lovelace"},
		{" Ada ", " Lovelace ", "Ada Lovelace"},
	}
	for _, c := range cases {
		u := models.User{FirstName: c.first, LastName: c.last}
		if got := u.FullName(); got != c.want {
			t.Fatalf("FullName(%q,%q) = %q want %q", c.first, c.last, got, c.want)
		}
	}
}

func TestInvitationCodeUsable(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c := models.InvitationCode{Code: "ABCD1234", Deadline: now.Add(time.Hour)}
	if !c.Usable(now) {
		t.Fatalf("expected fresh code to be usable")
	}
	if c.Usable(now.Add(2 * time.Hour)) {
		t.Fatalf("expected expired code to be unusable")
	}
	c.Used = true
	if c.Usable(now) {
		t.Fatalf("expected used code to be unusable")
	}
}

func TestForumChangeEmpty(t *testing.T) {
	if !(models.ForumChange{}).Empty() {
		t.Fatalf("zero change should be empty")
	}
	if (models.ForumChange{DeletedReplies: []string{"r"}}).Empty() {
		t.Fatalf("change with a delete should not be empty")
	}
}
