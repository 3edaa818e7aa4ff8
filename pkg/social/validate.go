package social

import (
	"errors"
	"regexp"
)

// Usernames are email addresses; passwords must be 6-16 chars from a limited
// charset with at least one digit and one special character. Both rules match
// the account-creation policy of the client application.
var (
	usernameRe = regexp.MustCompile(`^[^\s@"]+@([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)
	passwordRe = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*]{6,16}$`)
	digitRe    = regexp.MustCompile(`[0-9]`)
	upperRe    = regexp.MustCompile(`[A-Z]`)
	specialRe  = regexp.MustCompile(`[!@#$%^&*]`)
)

// ValidateUsername checks that the username is a plausible email address.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is mandatory")
	}
	if !usernameRe.MatchString(username) {
		return errors.New("username is invalid")
	}
	return nil
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return errors.New("password is mandatory")
	case len(password) < 8:
		return errors.New("password must have at least 8 characters")
	case !digitRe.MatchString(password):
		return errors.New("password must contain at least one digit")
	case !upperRe.MatchString(password):
		return errors.New("password must have one uppercase letter")
	case !specialRe.MatchString(password), !passwordRe.MatchString(password):
		return errors.New("password must have one special character")
	}
	return nil
}
