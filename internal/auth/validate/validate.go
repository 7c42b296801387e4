package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

// Error is a user-correctable validation failure. The reason is safe
// to show verbatim.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Rules applies the account field rules. It satisfies auth.Validator.
type Rules struct{}

// NewRules returns the standard field rules.
func NewRules() *Rules {
	return &Rules{}
}

// Username requires 3-20 characters of letters, digits or underscore.
func (Rules) Username(s string) error {
	switch {
	case len(s) < 3:
		return &Error{Field: "username", Reason: "must be at least 3 characters"}
	case len(s) > 20:
		return &Error{Field: "username", Reason: "must be at most 20 characters"}
	case !usernamePattern.MatchString(s):
		return &Error{Field: "username", Reason: "may only contain letters, digits and underscores"}
	}
	return nil
}

// Email requires a single parseable address with a domain part.
func (Rules) Email(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return &Error{Field: "email", Reason: "is not a valid email address"}
	}
	if !strings.Contains(s, "@") || strings.HasSuffix(s, "@") {
		return &Error{Field: "email", Reason: "is not a valid email address"}
	}
	return nil
}

// Password requires at least 8 characters including a letter and a
// digit.
func (Rules) Password(s string) error {
	if len(s) < 8 {
		return &Error{Field: "password", Reason: "must be at least 8 characters"}
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return &Error{Field: "password", Reason: "must contain at least one letter and one digit"}
	}
	return nil
}
