package commsutil

import "testing"

func TestBuildScopeSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		scope  string
		want   string
	}{
		{"basic", "msg", "storage", "msg.storage"},
		{"default prefix", "", "system", "msg.system"},
		{"custom prefix", "ext.v1", "tabs", "ext.v1.tabs"},
		{"dotted scope", "msg", "storage.local", "msg.storage_local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildScopeSubject(tt.prefix, tt.scope); got != tt.want {
				t.Errorf("BuildScopeSubject(%q, %q) = %q, want %q", tt.prefix, tt.scope, got, tt.want)
			}
		})
	}
}

func TestBuildChangeSubject(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"theme", "storage.changed.theme"},
		{"user.settings", "storage.changed.user_settings"},
		{"a*b>c", "storage.changed.a_b_c"},
		{"", "storage.changed._"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := BuildChangeSubject(tt.key); got != tt.want {
				t.Errorf("BuildChangeSubject(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
