package state

import (
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Unit tests for shared helpers
// ============================================================================

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpPut, "put"},
		{OpDelete, "delete"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"feed node", "iot_system", false},
		{"control key", "iot_system.control.reboot", false},
		{"empty", "", true},
		{"spaces", "iot system", true},
		{"tab", "iot\tsystem", true},
		{"leading dot", ".iot_system", true},
		{"trailing dot", "iot_system.", true},
		{"too long", strings.Repeat("a", 1025), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTTL(t *testing.T) {
	if err := ValidateTTL(0); err != nil {
		t.Errorf("zero TTL should be valid: %v", err)
	}
	if err := ValidateTTL(time.Minute); err != nil {
		t.Errorf("positive TTL should be valid: %v", err)
	}
	if err := ValidateTTL(-time.Second); err != ErrInvalidTTL {
		t.Errorf("negative TTL: got %v, want ErrInvalidTTL", err)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"iot_system", "iot_system", true},
		{"iot_system", "iot_system.control.reboot", false},
		{"iot_system.*", "iot_system.control.reboot", true},
		{"iot_system.*", "iot_system", false},
		{"iot_*", "iot_system", true},
		{"other", "iot_system", false},
	}

	for _, tt := range tests {
		if got := MatchPattern(tt.pattern, tt.key); got != tt.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}
