package session

import (
	"os"

	"github.com/matheus3301/zpp/internal/config"
)

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. $ZPP_SESSION
// 3. config.toml default_session
// 4. a name derived from the configured realm URL
// 5. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv("ZPP_SESSION"); env != "" {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		return DefaultSessionName
	}
	if cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	if name := NameFromRealm(cfg.Server.URL); name != "" {
		return name
	}
	return DefaultSessionName
}
