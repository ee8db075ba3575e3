package session

import (
	"testing"

	"github.com/matheus3301/zpp/internal/config"
)

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("ZPP_HOME", t.TempDir())
	t.Setenv("ZPP_SESSION", "")

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve() with nothing set = %q, want %q", got, DefaultSessionName)
	}

	cfg := config.Default()
	cfg.Server.URL = "https://chat.example.com"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "chat-example-com" {
		t.Errorf("Resolve() from realm = %q, want chat-example-com", got)
	}

	cfg.DefaultSession = "work"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() from config = %q, want work", got)
	}

	t.Setenv("ZPP_SESSION", "env")
	if got := Resolve(""); got != "env" {
		t.Errorf("Resolve() from env = %q, want env", got)
	}

	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q, want flag", got)
	}
}
