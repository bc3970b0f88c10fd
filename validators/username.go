// Package validators holds field validators and the request payloads the
// API accepts, validated with ozzo-validation.
package validators

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	CodeUsernameDot      = "validation_username_dot"
	CodeUsernameReserved = "validation_username_reserved"
	CodeUsernameChars    = "validation_username_chars"
	CodeTwitterHandle    = "validation_twitter_handle"

	UsernameMaxLen = 150
)

var (
	errUsernameDot      = validation.NewError(CodeUsernameDot, `usernames cannot start with a "."`)
	errUsernameReserved = validation.NewError(CodeUsernameReserved, "This username is not available")
	errTwitterHandle    = validation.NewError(CodeTwitterHandle, "Twitter handles are 1-15 letters, digits or underscores")

	usernameChars = regexp.MustCompile(`^[A-Za-z0-9_.@+-]+$`)
	twitterHandle = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

	// Usernames double as path segments of profile pages, so these
	// would shadow real routes.
	reservedUsernames = map[string]bool{
		"index.html": true,
		"page":       true,
	}
)

func usernameRule(value interface{}) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, ".") {
		return errUsernameDot
	}
	if reservedUsernames[s] {
		return errUsernameReserved
	}
	return nil
}

// ValidateUsername checks a username for registration
func ValidateUsername(username string) error {
	return validation.Validate(username,
		validation.Required,
		validation.RuneLength(1, UsernameMaxLen),
		validation.By(usernameRule),
		validation.Match(usernameChars).Error("usernames may contain only letters, digits and @/./+/-/_"),
	)
}

// ValidateTwitterHandle accepts a handle without the leading @
func ValidateTwitterHandle(handle string) error {
	if !twitterHandle.MatchString(handle) {
		return errTwitterHandle
	}
	return nil
}

// ErrorCode extracts the ozzo error code, empty for other errors
func ErrorCode(err error) string {
	var verr validation.Error
	if errors.As(err, &verr) {
		return verr.Code()
	}
	return ""
}
