package versioncheck

import (
	"testing"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"version with v prefix", "v1.2.3", "v1.2.3"},
		{"version without v prefix", "1.2.3", "v1.2.3"},
		{"unknown version", "unknown", "v0.0.0"},
		{"development version", "development", "v0.0.0"},
		{"empty version", "", "v0.0.0"},
		{"garbage version", "not-a-version", "v0.0.0"},
		{"pre-release version", "v1.2.3-beta", "v1.2.3-beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeVersion(tt.input)
			if result != tt.expected {
				t.Errorf("normalizeVersion(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name     string
		v1       string
		v2       string
		expected int
	}{
		{"equal versions", "v1.2.3", "v1.2.3", 0},
		{"equal mixed format", "v1.2.3", "1.2.3", 0},
		{"older major", "v1.2.3", "v2.0.0", -1},
		{"older patch", "v1.2.3", "v1.2.4", -1},
		{"newer minor", "v1.3.0", "v1.2.3", 1},
		{"development older than any release", "development", "v0.1.0", -1},
		{"pre-release before release", "v1.2.3-rc1", "v1.2.3", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CompareVersions(tt.v1, tt.v2)
			if result != tt.expected {
				t.Errorf("CompareVersions(%q, %q) = %d; want %d", tt.v1, tt.v2, result, tt.expected)
			}
		})
	}
}
