package session

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"simple", "main", ""},
		{"realm derived", "chat-zulip-org", ""},
		{"underscore", "my_session", ""},
		{"max length", strings.Repeat("a", 64), ""},
		{"empty", "", "empty"},
		{"too long", strings.Repeat("a", 65), "longer than 64"},
		{"uppercase", "Main", "lowercase"},
		{"dot", "chat.zulip.org", "lowercase"},
		{"slash", "../etc", "lowercase"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateName(%q) = %v", tt.input, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ValidateName(%q) = %v, want error containing %q", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNameFromRealm(t *testing.T) {
	tests := map[string]string{
		"https://chat.zulip.org":             "chat-zulip-org",
		"https://Example.ZulipChat.com/":     "example-zulipchat-com",
		"http://localhost:9991":              "localhost",
		"https://" + strings.Repeat("a", 70): strings.Repeat("a", 64),
		"not a url":                          "",
		"":                                   "",
	}
	for in, want := range tests {
		got := NameFromRealm(in)
		if got != want {
			t.Errorf("NameFromRealm(%q) = %q, want %q", in, got, want)
		}
		if got != "" {
			if err := ValidateName(got); err != nil {
				t.Errorf("derived name %q is invalid: %v", got, err)
			}
		}
	}
}
