// Package validation checks user-supplied channel and login names before
// they are encoded into protocol lines.
package validation

import (
	"fmt"
	"strings"
)

const maxLoginLength = 25

// NormalizeChannel lowercases a channel name and strips a leading '#'.
// Twitch channel names are the broadcaster's login.
func NormalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}

// ValidateChannel reports whether channel is a usable channel name. The
// input is expected to be normalized.
func ValidateChannel(channel string) error {
	if err := ValidateLogin(channel); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	return nil
}

// ValidateLogin reports whether login is a well-formed Twitch login:
// letters, digits, and underscores, at most 25 characters.
func ValidateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("login is required")
	}
	if len(login) > maxLoginLength {
		return fmt.Errorf("login %q too long (max %d characters)", login, maxLoginLength)
	}
	for _, r := range login {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return fmt.Errorf("login %q contains invalid character %q", login, r)
		}
	}
	return nil
}
