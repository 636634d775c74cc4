package client

import (
	"regexp"
	"unicode"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 16
)

// Printable ASCII only, with at least one special character.
var passwordPattern = regexp.MustCompile(`^[ -~]*[!@#$%^&*()+\-=\[\]{};':"|,.<>/?_~][ -~]*$`)

// ValidatePassword applies the trading password policy and returns the
// message shown under the password input, or "" when the password is valid.
func ValidatePassword(password string) string {
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return "You should enter 8-16 characters."
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "Password should have lower and uppercase English letters with numbers."
	}
	if !passwordPattern.MatchString(password) {
		return "Please include at least 1 special character such as ( _ @ ? ! / # ) in your password."
	}
	return ""
}
