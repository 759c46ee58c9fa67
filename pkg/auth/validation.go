package auth

import (
	"regexp"
	"strings"

	"github.com/flower-app/flower/pkg/domain"
)

// Form regions, used by handlers to place exactly one error message per
// region of the registration form.
const (
	RegionBasicInfo = "basic"
	RegionPassword  = "password"
)

// ValidationError is a pre-network, field-scoped validation failure.
// Field is one of "username", "email", "password", "confirm".
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Region returns the form region the failing field belongs to.
func (e *ValidationError) Region() string {
	switch e.Field {
	case "username", "email":
		return RegionBasicInfo
	default:
		return RegionPassword
	}
}

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

const minPasswordLength = 6

// ValidateUsername checks the username format: 3-20 characters, letters,
// digits or underscore.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(strings.TrimSpace(username)) {
		return domain.ErrInvalidUsername
	}
	return nil
}

// ValidateEmail applies the client-side plausibility rule: the address
// must contain both '@' and '.'. Stricter parsing happens server-side at
// registration.
func ValidateEmail(email string) error {
	t := strings.TrimSpace(email)
	if !strings.Contains(t, "@") || !strings.Contains(t, ".") {
		return domain.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	return nil
}

// ValidateRegistration checks all registration preconditions, returning the
// first failure as a field-scoped error. A failure here must short-circuit
// before any store access.
func ValidateRegistration(username, email, password, confirm string) *ValidationError {
	if err := ValidateUsername(username); err != nil {
		return &ValidationError{Field: "username", Err: err}
	}
	if err := ValidateEmail(email); err != nil {
		return &ValidationError{Field: "email", Err: err}
	}
	if err := ValidatePassword(password); err != nil {
		return &ValidationError{Field: "password", Err: err}
	}
	if confirm != password {
		return &ValidationError{Field: "confirm", Err: domain.ErrPasswordMismatch}
	}
	return nil
}
