// Package session locates per-session state on disk. A session is one
// daemon for one Zulip account: its socket, lock, database and logs live
// under $ZPP_HOME/sessions/<name>.
package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// BaseDir returns ~/.zpp, or $ZPP_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("ZPP_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zpp")
}

func sessionsDir() string {
	return filepath.Join(BaseDir(), "sessions")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(sessionsDir(), name)
}

func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// AppDBPath returns zpp.db: local storage and echoed messages.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "zpp.db")
}

func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "zppd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree, private to the user.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// Info describes one session directory.
type Info struct {
	Name      string
	Path      string
	HasSocket bool
	HasDB     bool
}

// List returns every valid session directory, sorted by name. A missing
// base directory yields an empty list.
func List() ([]Info, error) {
	entries, err := os.ReadDir(sessionsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		out = append(out, Info{
			Name:      e.Name(),
			Path:      Dir(e.Name()),
			HasSocket: exists(SocketPath(e.Name())),
			HasDB:     exists(AppDBPath(e.Name())),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
