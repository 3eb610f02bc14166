package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid email with subdomain", "user@mail.example.com", false},
		{"empty email", "", true},
		{"invalid format", "invalid-email", true},
		{"missing @", "userexample.com", true},
		{"too long", strings.Repeat("a", 250) + "@example.com", true},
		{"valid with plus", "user+tag@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		username string
		wantErr bool
	}{
		{"valid username", "user123", false},
		{"valid with underscore", "user_name", false},
		{"valid with dash", "user-name", false},
		{"too short", "ab", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 51), true},
		{"invalid chars", "user name", true},
		{"invalid chars 2", "user@name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name    string
		password string
		wantErr bool
	}{
		{"valid password", "password123", false},
		{"minimum length", "pass12", false},
		{"empty", "", true},
		{"too short", "pass", true},
		{"too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCallID(t *testing.T) {
	tests := []struct {
		name    string
		callID  string
		wantErr bool
	}{
		{"valid call ID", "call-123", false},
		{"valid uuid", "9b2d1c4e-7f3a-4b6d-8b1a-2c3d4e5f6a7b", false},
		{"valid with underscore", "call_123", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 101), true},
		{"invalid chars", "call 123", true},
		{"invalid chars 2", "call@123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCallID(tt.callID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCallID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateParticipantID(t *testing.T) {
	tests := []struct {
		name          string
		participantID string
		wantErr       bool
	}{
		{"valid participant ID", "participant_1a2b3c4d", false},
		{"valid with dots", "alice.laptop", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 101), true},
		{"invalid chars", "alice bob", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParticipantID(tt.participantID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateParticipantID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		wantErr     bool
	}{
		{"valid name", "Alice", false},
		{"empty is allowed", "", false},
		{"with spaces", "Alice B", false},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplayName(tt.displayName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDisplayName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSDP(t *testing.T) {
	validSDP := "v=0\r\no=- 123 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

	tests := []struct {
		name    string
		sdp     string
		wantErr bool
	}{
		{"valid sdp", validSDP, false},
		{"empty", "", true},
		{"wrong prefix", "o=- 123\r\nv=0\r\ns=-\r\nt=0 0\r\n", true},
		{"missing origin", "v=0\r\ns=-\r\nt=0 0\r\n", true},
		{"missing timing", "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSDP(tt.sdp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSDP() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
