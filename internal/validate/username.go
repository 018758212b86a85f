// Package validate holds the account field validators used for registration
// and live form feedback.
package validate

import "unicode/utf8"

const (
	MinUsernameLength = 4
	MaxUsernameLength = 16
)

// Username messages.
const (
	MsgUsernameEmpty     = "The username is empty"
	MsgUsernameStart     = "A username must start with A-Z or a-z"
	MsgUsernameChar      = "A username may only contain A-Z, a-z, 0-9, period, minus or underscore"
	MsgUsernameSeparator = "A period, minus or underscore must be followed by A-Z, a-z or 0-9"
	MsgUsernameTooShort  = "A username must have at least 4 characters"
	MsgUsernameTooLong   = "A username must have no more than 16 characters"
)

// UsernameResult describes the outcome of CheckUsernameDetail. ErrorIndex is
// the zero-based rune offset of the first offending character, or -1.
type UsernameResult struct {
	Message    string `json:"message"`
	ErrorIndex int    `json:"error_index"`
}

// Valid reports whether the username was accepted.
func (r UsernameResult) Valid() bool { return r.Message == "" }

// CheckUsername returns "" for an acceptable username or a message that
// explains the first problem found.
func CheckUsername(s string) string {
	return CheckUsernameDetail(s).Message
}

// CheckUsernameDetail scans s once: a letter first, then alphanumerics, where
// each '.', '-' or '_' must be followed by an alphanumeric.
func CheckUsernameDetail(s string) UsernameResult {
	if s == "" {
		return UsernameResult{Message: MsgUsernameEmpty, ErrorIndex: 0}
	}

	i := 0
	afterSeparator := false
	for _, r := range s {
		switch {
		case i == 0:
			if !isLetter(r) {
				return UsernameResult{Message: MsgUsernameStart, ErrorIndex: 0}
			}
		case isLetter(r) || isDigit(r):
			afterSeparator = false
		case isSeparator(r):
			if afterSeparator {
				return UsernameResult{Message: MsgUsernameSeparator, ErrorIndex: i}
			}
			afterSeparator = true
		default:
			if afterSeparator {
				return UsernameResult{Message: MsgUsernameSeparator, ErrorIndex: i}
			}
			return UsernameResult{Message: MsgUsernameChar, ErrorIndex: i}
		}
		i++
		if i > MaxUsernameLength {
			return UsernameResult{Message: MsgUsernameTooLong, ErrorIndex: MaxUsernameLength}
		}
	}

	n := utf8.RuneCountInString(s)
	if afterSeparator {
		return UsernameResult{Message: MsgUsernameSeparator, ErrorIndex: n}
	}
	if n < MinUsernameLength {
		return UsernameResult{Message: MsgUsernameTooShort, ErrorIndex: n}
	}
	return UsernameResult{ErrorIndex: -1}
}

func isLetter(r rune) bool { return ('A' <= r && r <= 'Z') || ('a' <= r && r <= 'z') }

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isSeparator(r rune) bool { return r == '.' || r == '-' || r == '_' }
