package validate

import (
	"fmt"
	"strings"
)

const MinPasswordLength = 8

// PasswordSpecials are the accepted special characters.
const PasswordSpecials = "~`!@#$%^&*()_-+{}[]|:,.?/"

const MsgPasswordEmpty = "The password is empty"

// PasswordResult reports which character classes a password contains so
// callers can render per-requirement feedback. ErrorIndex is the zero-based
// offset of the offending character, 0 for an empty password, or -1.
type PasswordResult struct {
	FoundUpperCase  bool   `json:"found_upper_case"`
	FoundLowerCase  bool   `json:"found_lower_case"`
	FoundDigit      bool   `json:"found_digit"`
	FoundSpecial    bool   `json:"found_special"`
	FoundLongEnough bool   `json:"found_long_enough"`
	Size            int    `json:"size"`
	ErrorIndex      int    `json:"error_index"`
	Message         string `json:"message"`
}

func (r PasswordResult) Valid() bool { return r.Message == "" }

// CheckPassword classifies each character of s. Scanning stops at the first
// character outside the accepted classes.
func CheckPassword(s string) PasswordResult {
	if s == "" {
		return PasswordResult{Message: MsgPasswordEmpty, ErrorIndex: 0}
	}

	var res PasswordResult
	for i, r := range []rune(s) {
		switch {
		case 'A' <= r && r <= 'Z':
			res.FoundUpperCase = true
		case 'a' <= r && r <= 'z':
			res.FoundLowerCase = true
		case '0' <= r && r <= '9':
			res.FoundDigit = true
		case strings.ContainsRune(PasswordSpecials, r):
			res.FoundSpecial = true
		default:
			res.ErrorIndex = i
			res.Message = fmt.Sprintf("Invalid character '%c' found at position %d.", r, i+1)
			return res
		}
		res.Size++
		if res.Size >= MinPasswordLength {
			res.FoundLongEnough = true
		}
	}

	var missing []string
	if !res.FoundUpperCase {
		missing = append(missing, "uppercase letter")
	}
	if !res.FoundLowerCase {
		missing = append(missing, "lowercase letter")
	}
	if !res.FoundDigit {
		missing = append(missing, "numeric digit")
	}
	if !res.FoundSpecial {
		missing = append(missing, "special character")
	}
	if !res.FoundLongEnough {
		missing = append(missing, fmt.Sprintf("minimum %d characters (only %d found)", MinPasswordLength, res.Size))
	}
	if len(missing) > 0 {
		res.ErrorIndex = res.Size
		res.Message = "Password missing: " + strings.Join(missing, ", ")
		return res
	}

	res.ErrorIndex = -1
	return res
}
