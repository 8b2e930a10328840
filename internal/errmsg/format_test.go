//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpServerStart,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpServerStart,
			err:      errors.New("address already in use"),
			expected: "Failed to start server: address already in use",
		},
		{
			name:     "presence connect operation",
			op:       OpPresenceConnect,
			err:      errors.New("host not found"),
			expected: "Failed to connect to presence host: host not found",
		},
		{
			name:     "presence update operation",
			op:       OpPresenceUpdate,
			err:      errors.New("not connected"),
			expected: "Failed to update presence: not connected",
		},
		{
			name:     "decode operation",
			op:       OpMessageDecode,
			err:      errors.New("missing songName"),
			expected: "Failed to decode message: missing songName",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpConfigLoad,
			context:  "config.toml",
			err:      nil,
			expected: "",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpPresenceClear,
			context:  "",
			err:      errors.New("broken pipe"),
			expected: "Failed to clear presence: broken pipe",
		},
		{
			name:     "config load with path context",
			op:       OpConfigLoad,
			context:  "/home/user/.config/rpcbridge/config.toml",
			err:      errors.New("expected '=' after key"),
			expected: "Failed to load config '/home/user/.config/rpcbridge/config.toml': expected '=' after key",
		},
		{
			name:     "server start with address context",
			op:       OpServerStart,
			context:  "127.0.0.1:8112",
			err:      errors.New("address already in use"),
			expected: "Failed to start server '127.0.0.1:8112': address already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}

func TestOpConstants(t *testing.T) {
	// Verify that Op constants are non-empty and produce valid messages
	ops := []Op{
		OpServerStart, OpServerStop,
		OpMessageDecode, OpTrackPause,
		OpPresenceConnect, OpPresenceUpdate, OpPresenceClear,
		OpConfigLoad, OpConfigReload, OpNotify, OpInitialize,
	}

	testErr := errors.New("test error")

	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			if op == "" {
				t.Error("Op constant should not be empty")
			}

			expected := "Failed to " + string(op) + ": test error"
			if result := Format(op, testErr); result != expected {
				t.Errorf("Format = %q, want %q", result, expected)
			}
		})
	}
}
