package validate

import "testing"

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantIdx int
		check   func(PasswordResult) bool
	}{
		{name: "valid", input: "Passw0rd!", want: "", wantIdx: -1, check: func(r PasswordResult) bool {
			return r.FoundUpperCase && r.FoundLowerCase && r.FoundDigit && r.FoundSpecial && r.FoundLongEnough && r.Size == 9
		}},
		{name: "empty", input: "", want: MsgPasswordEmpty, wantIdx: 0},
		{name: "invalid character", input: "Ab1 !", want: "Invalid character ' ' found at position 4.", wantIdx: 3},
		{name: "missing everything but lowercase", input: "abc", want: "Password missing: uppercase letter, numeric digit, special character, minimum 8 characters (only 3 found)", wantIdx: 3},
		{name: "missing special", input: "Password1", want: "Password missing: special character", wantIdx: 9, check: func(r PasswordResult) bool {
			return !r.FoundSpecial && r.FoundLongEnough
		}},
		{name: "exactly eight", input: "Aa1~aaaa", want: "", wantIdx: -1},
		{name: "seven is short", input: "Aa1~aaa", want: "Password missing: minimum 8 characters (only 7 found)", wantIdx: 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckPassword(tc.input)
			if got.Message != tc.want {
				t.Fatalf("message: got %q want %q", got.Message, tc.want)
			}
			if got.ErrorIndex != tc.wantIdx {
				t.Fatalf("index: got %d want %d", got.ErrorIndex, tc.wantIdx)
			}
			if got.Valid() != (tc.want == "") {
				t.Fatalf("Valid() = %v for message %q", got.Valid(), got.Message)
			}
			if tc.check != nil && !tc.check(got) {
				t.Fatalf("unexpected flags: %+v", got)
			}
		})
	}
}
