package utils

import (
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	tests := []struct {
		in, want string
	}{
		{"~", "/home/tester"},
		{"~/.config/habitenforcer/habitenforcer.db", filepath.Join("/home/tester", ".config/habitenforcer/habitenforcer.db")},
		{"/var/lib/app.db", "/var/lib/app.db"},
		{"relative.db", "relative.db"},
		{"~other/file", "~other/file"},
		{"postgres://user@localhost/db", "postgres://user@localhost/db"},
	}
	for _, tt := range tests {
		got, err := ExpandHome(tt.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
