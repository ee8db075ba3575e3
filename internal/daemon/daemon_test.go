package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/lock"
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/status"
	"github.com/matheus3301/zpp/internal/store"
	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/unsent"
	"github.com/matheus3301/zpp/internal/zulip"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type components struct {
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	people  *people.Registry
	model   *presence.Model
	valid   *compose.Validator
	builder *compose.Builder
	actions *compose.Actions
	queue   *unsent.Queue
}

func newComponents(t *testing.T, dir string) *components {
	t.Helper()
	db, err := store.Open(filepath.Join(dir, "zpp.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	cfg := config.Default()
	ppl := people.NewRegistry()
	ppl.Add(people.User{ID: 1, Email: "me@x.com", IsActive: true})
	ppl.SetMe(1)
	strs := streams.NewRegistry()
	coord := echo.NewCoordinator(db, nil, b, nil)
	valid := compose.NewValidator(cfg.Realm, ppl, strs, nil, nil, nil)
	builder := compose.NewBuilder(cfg.Realm, "https://zulip.example.com", ppl, strs)
	actions := compose.NewActions(compose.Deps{
		Validator: valid,
		Builder:   builder,
		Echo:      coord,
		Self:      ppl,
		Compose:   cfg.Compose,
	})
	return &components{
		db:      db,
		bus:     b,
		machine: status.NewMachine(b),
		people:  ppl,
		model:   presence.New(cfg.Presence, ppl, b),
		valid:   valid,
		builder: builder,
		actions: actions,
		queue:   unsent.New(db, actions, b, nil),
	}
}

func (c *components) server(t *testing.T, socketPath string) *Server {
	t.Helper()
	srv, err := NewServer(
		Params{SessionName: "test", SocketPath: socketPath},
		zap.NewNop(),
		api.NewComposeService(c.actions, c.queue, nil),
		api.NewPresenceService(c.model, c.people),
		api.NewSessionService(api.SessionInfo{Name: "test"}, api.SessionDeps{Machine: c.machine, People: c.people, Unsent: c.queue, DB: c.db, Bus: c.bus}),
		api.NewMessageService(c.db, nil, nil),
		api.NewUnsentService(c.queue, c.actions),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid the 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "zpp-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionDir := filepath.Join(tmpDir, "test")
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}
	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	c := newComponents(t, sessionDir)
	socketPath := filepath.Join(sessionDir, "d.sock")
	srv := c.server(t, socketPath)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	client, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status error = %v", err)
	}
	if resp.Session != "test" {
		t.Errorf("session = %q, want test", resp.Session)
	}
	if resp.Status != string(status.Booting) {
		t.Errorf("status = %v, want BOOTING", resp.Status)
	}

	// The status endpoint follows the event queue state.
	_ = c.machine.Transition(status.Registering)
	_ = c.machine.Transition(status.Polling)
	resp, err = client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(status.Polling) {
		t.Errorf("status = %v, want POLLING", resp.Status)
	}

	view, err := client.Compose(ctx)
	if err != nil {
		t.Fatalf("Compose error = %v", err)
	}
	if view.Open {
		t.Error("compose box should start closed")
	}

	msgs, err := client.Messages(ctx, 0)
	if err != nil {
		t.Fatalf("Messages error = %v", err)
	}
	if len(msgs.Messages) != 0 {
		t.Errorf("expected 0 messages, got %d", len(msgs.Messages))
	}
}

// TestServerUsesParamsSocket verifies the socket lands where Params says,
// not under ~/.zpp.
func TestServerUsesParamsSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "zpp-fx-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	srv := newComponents(t, tmpDir).server(t, socketPath)

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 600", perm)
	}

	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	t.Setenv("ZPP_HOME", t.TempDir())
	if err := fx.ValidateApp(Module(Params{SessionName: "fxtest"}), fx.NopLogger); err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}

func TestApplyConfig(t *testing.T) {
	c := newComponents(t, t.TempDir())
	ch, unsub := c.bus.Subscribe("config.", 4)
	defer unsub()

	d := lifecycleDeps{
		Config:    config.Default(),
		Presence:  c.model,
		Validator: c.valid,
		Builder:   c.builder,
		Actions:   c.actions,
		Bus:       c.bus,
		Logger:    zap.NewNop(),
		Level:     zap.NewAtomicLevel(),
	}
	next := config.Default()
	next.Compose.EnterSends = false
	next.Realm.MandatoryTopics = true
	next.LogLevel = "debug"
	next.Presence.OfflineThresholdSeconds = 10

	// The server's threshold survives a reload of the config file.
	c.model.SetOfflineThreshold(300)
	c.model.SetInfo(nil, 1000, 1)
	applyConfig(d, next)
	if got := c.model.StatusFromRaw(zulip.RawPresence{ActiveTimestamp: 900}, 99).Status; got != presence.Active {
		t.Errorf("status = %s, want active under the server threshold", got)
	}

	if got := d.Level.Level(); got != zapcore.DebugLevel {
		t.Errorf("log level = %v, want debug", got)
	}

	if c.actions.EnterSends() {
		t.Error("EnterSends should follow the reloaded config")
	}
	select {
	case evt := <-ch:
		if evt.Kind != bus.ConfigReloaded {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.ConfigReloaded)
		}
	case <-time.After(time.Second):
		t.Fatal("no config.reloaded event")
	}

	// Mandatory topics now applies to the live validator.
	c.actions.Start(compose.StartOpts{Type: message.Stream, StreamName: "general", Content: "hi"})
	out, err := c.actions.Finish(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !out.Blocked {
		t.Fatal("expected the send to be blocked")
	}
	if b := c.actions.Session().Banners(); b.Error == nil || b.Error.Kind != compose.ErrTopic {
		t.Errorf("banner = %+v, want topic error", b.Error)
	}
}

func TestSaveDraft(t *testing.T) {
	c := newComponents(t, t.TempDir())

	// Nothing open, nothing queued: nothing written.
	if err := saveDraft(c.actions, c.queue); err != nil {
		t.Fatal(err)
	}
	var saved []unsent.Message
	if found, err := c.db.GetLocal(unsent.Key, unsent.Version, &saved); err != nil || found {
		t.Fatalf("found = %v, err = %v; want nothing stored", found, err)
	}

	c.actions.Start(compose.StartOpts{Type: message.Stream, StreamName: "general", Topic: "t", Content: "half written"})
	if err := saveDraft(c.actions, c.queue); err != nil {
		t.Fatal(err)
	}
	found, err := c.db.GetLocal(unsent.Key, unsent.Version, &saved)
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v; want the draft stored", found, err)
	}
	if len(saved) != 1 || saved[0].Content != "half written" {
		t.Errorf("saved = %+v", saved)
	}
}
