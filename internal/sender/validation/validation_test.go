package validation

import "testing"

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://hooks.slack.com/services/T000/B000/XXX", true},
		{"http://localhost:8080/hook", true},
		{"ftp://example.com", false},
		{"#alerts", false},
		{"https://", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidURL(tt.in); got != tt.want {
			t.Errorf("IsValidURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"oncall@example.com", true},
		{"Ops <ops@example.com>", false},
		{"not-an-address", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.in); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
