package validate

import (
	"strings"
	"testing"
)

func TestCheckUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantIdx int
	}{
		{"valid simple", "alice", "", -1},
		{"valid with separators", "j.doe-x_1", "", -1},
		{"valid min length", "abcd", "", -1},
		{"valid max length", strings.Repeat("a", 16), "", -1},
		{"empty", "", MsgUsernameEmpty, 0},
		{"starts with digit", "1abc", MsgUsernameStart, 0},
		{"starts with separator", "_abc", MsgUsernameStart, 0},
		{"bad character", "ab cd", MsgUsernameChar, 2},
		{"double separator", "ab..cd", MsgUsernameSeparator, 3},
		{"trailing separator", "abcd.", MsgUsernameSeparator, 5},
		{"too short", "abc", MsgUsernameTooShort, 3},
		{"too long", strings.Repeat("a", 17), MsgUsernameTooLong, 16},
		{"non ascii letter", "josé", MsgUsernameChar, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckUsernameDetail(tc.input)
			if got.Message != tc.want {
				t.Fatalf("message: got %q want %q", got.Message, tc.want)
			}
			if got.ErrorIndex != tc.wantIdx {
				t.Fatalf("index: got %d want %d", got.ErrorIndex, tc.wantIdx)
			}
			if CheckUsername(tc.input) != tc.want {
				t.Fatalf("CheckUsername disagrees with detail for %q", tc.input)
			}
		})
	}
}
