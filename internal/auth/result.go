package auth

// Category classifies why an operation failed. Callers branch on the
// category, never on error types: nothing below the service surfaces
// raw errors to its callers.
type Category string

const (
	// CategoryNone marks a successful result.
	CategoryNone Category = ""

	// CategoryValidation covers malformed input the user can correct;
	// the message names the reason.
	CategoryValidation Category = "validation"

	// CategoryAuth covers bad credentials, invalid or expired tokens,
	// and lockouts. Messages stay generic to avoid oracles.
	CategoryAuth Category = "auth"

	// CategoryService covers unavailable collaborators (database,
	// mailer, OAuth transport).
	CategoryService Category = "service"

	// CategoryState covers unmet preconditions: no active login, or a
	// cooldown that has not elapsed.
	CategoryState Category = "state"
)

// Result is the uniform value every service operation returns. On
// success from a session-creating operation, SessionToken carries the
// minted token.
type Result struct {
	Success      bool
	Category     Category
	Message      string
	SessionToken string
}

func ok(message string) Result {
	return Result{Success: true, Message: message}
}

func okSession(message, token string) Result {
	return Result{Success: true, Message: message, SessionToken: token}
}

func fail(cat Category, message string) Result {
	return Result{Category: cat, Message: message}
}
