package auth

import "time"

// Identity is the account view the service holds for a logged-in user.
// It contains facts from the credential store only, no auth state.
type Identity struct {
	Username string
	Email    string

	// LastUsernameChange drives the username-change cooldown.
	LastUsernameChange time.Time
}
