package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/bus"
	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/config"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/events"
	"github.com/matheus3301/zpp/internal/lock"
	"github.com/matheus3301/zpp/internal/logging"
	"github.com/matheus3301/zpp/internal/outbox"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/presence"
	"github.com/matheus3301/zpp/internal/session"
	"github.com/matheus3301/zpp/internal/status"
	"github.com/matheus3301/zpp/internal/store"
	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/unsent"
	"github.com/matheus3301/zpp/internal/zulip"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // empty = ~/.zpp/config.toml
	LogLevel    string // empty = config log_level, then info
	Console     bool   // also log to stderr
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLevel,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			people.NewRegistry,
			streams.NewRegistry,
			providePresence,
			provideEcho,
			providePoller,
			provideSender,
			provideSubscriber,
			provideValidator,
			provideBuilder,
			provideActions,
			provideUnsent,
			providePinger,
			provideComposeService,
			providePresenceService,
			provideSessionService,
			provideMessageService,
			provideUnsentService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func (p Params) configPath() string {
	if p.ConfigPath != "" {
		return p.ConfigPath
	}
	return session.ConfigPath()
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.configPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// provideLevel prefers the command-line level; otherwise the config level
// applies and follows reloads.
func provideLevel(p Params, cfg *config.Config) zap.AtomicLevel {
	name := p.LogLevel
	if name == "" {
		name = cfg.LogLevel
	}
	return zap.NewAtomicLevelAt(logging.ParseLevel(name))
}

func provideLogger(p Params, level zap.AtomicLevel) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:    session.LogPath(p.SessionName),
		Session: p.SessionName,
		Level:   level,
		Console: p.Console,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	if n, err := db.FailInterrupted(); err != nil {
		_ = db.Close()
		return nil, err
	} else if n > 0 {
		logger.Warn("marked interrupted sends as failed", zap.Int64("count", n))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config) *zulip.Client {
	return zulip.New(cfg.RealmURL(), cfg.Server.Email, cfg.Server.APIKey, nil)
}

func providePresence(cfg *config.Config, ppl *people.Registry, b *bus.Bus) *presence.Model {
	return presence.New(cfg.Presence, ppl, b)
}

func provideEcho(db *store.DB, b *bus.Bus, logger *zap.Logger) (*echo.Coordinator, error) {
	coord := echo.NewCoordinator(db, nil, b, logger.Named("echo"))
	maxID, err := db.MaxServerID()
	if err != nil {
		return nil, err
	}
	coord.ObserveMessageID(maxID)
	failed, err := db.FailedEchoes()
	if err != nil {
		return nil, err
	}
	if n := coord.Restore(failed); n > 0 {
		logger.Info("restored failed messages for resend", zap.Int("count", n))
	}
	return coord, nil
}

func providePoller(client *zulip.Client, ppl *people.Registry, strs *streams.Registry, model *presence.Model, coord *echo.Coordinator, m *status.Machine, b *bus.Bus, logger *zap.Logger) *events.Poller {
	return events.NewPoller(client, events.Models{
		People:   ppl,
		Streams:  strs,
		Presence: model,
		Echo:     coord,
	}, m, b, logger.Named("events"))
}

func provideSender(client *zulip.Client, coord *echo.Coordinator, poller *events.Poller, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(client, coord, poller, logger.Named("outbox"))
}

func provideSubscriber(client *zulip.Client, strs *streams.Registry) *compose.ServerSubscriber {
	return compose.NewServerSubscriber(client, strs)
}

func provideValidator(cfg *config.Config, subs *compose.ServerSubscriber, ppl *people.Registry, strs *streams.Registry, logger *zap.Logger) *compose.Validator {
	return compose.NewValidator(cfg.Realm, ppl, strs, subs, nil, logger.Named("compose"))
}

func provideBuilder(cfg *config.Config, ppl *people.Registry, strs *streams.Registry) *compose.Builder {
	return compose.NewBuilder(cfg.Realm, cfg.RealmURL(), ppl, strs)
}

func provideActions(cfg *config.Config, client *zulip.Client, v *compose.Validator, bld *compose.Builder, subs *compose.ServerSubscriber, coord *echo.Coordinator, sender *outbox.Sender, poller *events.Poller, ppl *people.Registry, b *bus.Bus, logger *zap.Logger) *compose.Actions {
	return compose.NewActions(compose.Deps{
		Lifecycle:  compose.NewLifecycle(b),
		Validator:  v,
		Builder:    bld,
		Echo:       coord,
		Sender:     sender,
		Queue:      poller,
		Self:       ppl,
		Subscriber: subs,
		Uploader:   client,
		Compose:    cfg.Compose,
		Logger:     logger.Named("compose"),
	})
}

func provideUnsent(db *store.DB, actions *compose.Actions, b *bus.Bus, logger *zap.Logger) *unsent.Queue {
	return unsent.New(db, actions, b, logger.Named("unsent"))
}

func providePinger(cfg *config.Config, client *zulip.Client, model *presence.Model, logger *zap.Logger) *events.Pinger {
	interval := time.Duration(cfg.Presence.PingIntervalSeconds) * time.Second
	return events.NewPinger(client, model, interval, cfg.Presence.ShareEnabled, logger.Named("presence"))
}

func provideComposeService(actions *compose.Actions, queue *unsent.Queue, client *zulip.Client) *api.ComposeService {
	return api.NewComposeService(actions, queue, client)
}

func providePresenceService(model *presence.Model, ppl *people.Registry) *api.PresenceService {
	return api.NewPresenceService(model, ppl)
}

func provideSessionService(p Params, cfg *config.Config, m *status.Machine, poller *events.Poller, ppl *people.Registry, coord *echo.Coordinator, queue *unsent.Queue, db *store.DB, b *bus.Bus) *api.SessionService {
	return api.NewSessionService(api.SessionInfo{
		Name:  p.SessionName,
		Realm: cfg.RealmURL(),
		Email: cfg.Server.Email,
	}, api.SessionDeps{
		Machine: m,
		Queue:   poller,
		People:  ppl,
		Echo:    coord,
		Unsent:  queue,
		DB:      db,
		Bus:     b,
	})
}

func provideMessageService(db *store.DB, coord *echo.Coordinator, sender *outbox.Sender) *api.MessageService {
	return api.NewMessageService(db, coord, sender)
}

func provideUnsentService(queue *unsent.Queue, actions *compose.Actions) *api.UnsentService {
	return api.NewUnsentService(queue, actions)
}

// lifecycleDeps groups what the lifecycle hook drives.
type lifecycleDeps struct {
	fx.In

	Params    Params
	Config    *config.Config
	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Poller    *events.Poller
	Pinger    *events.Pinger
	Presence  *presence.Model
	Validator *compose.Validator
	Builder   *compose.Builder
	Actions   *compose.Actions
	Unsent    *unsent.Queue
	Bus       *bus.Bus
	Logger    *zap.Logger
	Level     zap.AtomicLevel
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := d.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start gRPC server in background.
			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Drafts left over from the last run are offered first.
			if err := d.Unsent.Initialize(); err != nil {
				logger.Warn("failed to restore unsent messages", zap.Error(err))
			}

			d.Poller.Start(ctx)
			go d.Pinger.Run(ctx)

			err := config.Watch(ctx, d.Params.configPath(), func(cfg *config.Config) {
				applyConfig(d, cfg)
			}, func(err error) {
				logger.Warn("config reload failed", zap.Error(err))
			})
			if err != nil {
				logger.Warn("config watch unavailable", zap.Error(err))
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			if err := saveDraft(d.Actions, d.Unsent); err != nil {
				logger.Error("failed to save draft", zap.Error(err))
			}
			cancel()
			d.Poller.Stop(stopCtx)
			d.Server.Stop(stopCtx)
			if err := d.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// saveDraft keeps the open draft and any unresolved unsent messages for the
// next run.
func saveDraft(actions *compose.Actions, queue *unsent.Queue) error {
	sess := actions.Session()
	if !sess.IsOpen() && !queue.Banner().Visible {
		return nil
	}
	return queue.Persist(sess.State())
}

// applyConfig pushes reloaded settings into the running components. Server
// credentials only take effect on restart.
func applyConfig(d lifecycleDeps, cfg *config.Config) {
	d.Validator.SetRealm(cfg.Realm)
	d.Builder.SetRealm(cfg.Realm)
	d.Actions.SetCompose(cfg.Compose)
	d.Presence.SetConfigThreshold(cfg.Presence.OfflineThresholdSeconds)
	d.Presence.SetShareEnabled(cfg.Presence.ShareEnabled)
	if d.Params.LogLevel == "" && cfg.LogLevel != "" && d.Level != (zap.AtomicLevel{}) {
		d.Level.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
	if cfg.Server != d.Config.Server {
		d.Logger.Warn("server settings changed; restart the daemon to apply them")
	}
	d.Logger.Info("config reloaded")
	d.Bus.Emit(bus.ConfigReloaded, nil)
}
