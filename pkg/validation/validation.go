package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// CallIDRegex validates call ID format (UUIDs and opaque slugs)
	CallIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ParticipantIDRegex validates participant ID format
	ParticipantIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateCallID validates a call ID.
func ValidateCallID(callID string) error {
	if callID == "" {
		return fmt.Errorf("call ID is required")
	}
	if len(callID) > 100 {
		return fmt.Errorf("call ID is too long (max 100 characters)")
	}
	if !CallIDRegex.MatchString(callID) {
		return fmt.Errorf("invalid call ID format")
	}
	return nil
}

// ValidateParticipantID validates a participant ID.
func ValidateParticipantID(participantID string) error {
	if participantID == "" {
		return fmt.Errorf("participant ID is required")
	}
	if len(participantID) > 100 {
		return fmt.Errorf("participant ID is too long (max 100 characters)")
	}
	if !ParticipantIDRegex.MatchString(participantID) {
		return fmt.Errorf("invalid participant ID format")
	}
	return nil
}

// ValidateDisplayName validates a participant display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) > 100 {
		return fmt.Errorf("display name is too long (max 100 characters)")
	}
	return nil
}

// ValidateSDP performs a basic shape check on a session description.
func ValidateSDP(sdp string) error {
	if sdp == "" {
		return fmt.Errorf("SDP cannot be empty")
	}
	if len(sdp) < 2 || sdp[:2] != "v=" {
		return fmt.Errorf("invalid SDP format: must start with 'v='")
	}
	for _, field := range []string{"v=", "o=", "s=", "t="} {
		if !strings.Contains(sdp, field) {
			return fmt.Errorf("invalid SDP format: missing required field '%s'", field)
		}
	}
	return nil
}

var (
	// UsernameRegex validates username format
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

	// EmailRegex is a pragmatic email shape check
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-50 characters of letters, digits, '_', '.' or '-'")
	}
	return nil
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword validates password strength.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}
