package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv("ZPP_HOME", "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".zpp", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestBaseDirOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("ZPP_HOME", tmp)
	if got := BaseDir(); got != tmp {
		t.Errorf("BaseDir() = %q, want %q", got, tmp)
	}
	if got := ConfigPath(); got != filepath.Join(tmp, "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "daemon.sock")) {
		t.Errorf("SocketPath(test) = %q, want suffix sessions/test/daemon.sock", got)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("ZPP_HOME", t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	for _, d := range []string{Dir("test"), LogDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s permission = %o, want 0700", d, perm)
		}
	}
}

func TestList(t *testing.T) {
	t.Setenv("ZPP_HOME", t.TempDir())

	got, err := List()
	if err != nil || len(got) != 0 {
		t.Fatalf("List() on empty home = %v, %v", got, err)
	}

	for _, name := range []string{"work", "chat-zulip-org"} {
		if err := EnsureDir(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(BaseDir(), "sessions", "Not.Valid"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(AppDBPath("work"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	got, err = List()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "chat-zulip-org" || got[1].Name != "work" {
		t.Fatalf("List() = %+v", got)
	}
	if !got[1].HasDB || got[1].HasSocket || got[0].HasDB {
		t.Errorf("flags wrong: %+v", got)
	}
}
