package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"hytun/internal/auth"
	"hytun/internal/config"
	"hytun/internal/config/emitter"
	"hytun/internal/config/parser"
	"hytun/internal/logger"
	"hytun/internal/monitor"
	"hytun/internal/node"
	"hytun/internal/paths"
	"hytun/internal/service"
	"hytun/internal/storage/jsonfile"
	"hytun/internal/storage/sqlite"
	"hytun/internal/subscription"
	"hytun/internal/web"
)

// App wires the manager together: document stores, the history database,
// authentication, the node registry, and the service controller.
type App struct {
	Settings *config.Manager
	History  *sqlite.DB
	Parsers  *parser.Registry
	Emitter  *emitter.Emitter
	Service  *service.Controller
	Creds    *auth.CredentialStore
	Sessions *auth.SessionManager
	Registry *node.Registry
	Subs     *subscription.Manager
	Monitor  *monitor.Monitor
	Web      *web.Server

	scheduler gocron.Scheduler
}

// New creates a new application instance.
func New() (*App, error) {
	dataDir, err := paths.DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	store, err := jsonfile.New(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	settings, err := config.NewManager(store)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	managerLog, err := paths.ManagerLog()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare log directory: %w", err)
	}
	if err := logger.Setup(settings.Get().LogLevel, managerLog); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	history, err := sqlite.New(filepath.Join(dataDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	parsers := parser.NewRegistry()
	em := emitter.New()

	svc := service.NewController(
		service.NewRunner(),
		settings.Get().ServiceName,
		paths.HysteriaConfig(),
		settings.Get().CommandTimeout(),
	)

	lockout := auth.NewLockoutPolicy(
		func() int { return settings.Get().LockoutThreshold },
		func() time.Duration { return settings.Get().LockoutDuration() },
	)

	creds, err := auth.NewCredentialStore(store, lockout)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	sessions, err := auth.NewSessionManager(store, creds, func() time.Duration {
		return settings.Get().SessionTTL()
	})
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	registry, err := node.NewRegistry(store, parsers, em, svc, func() emitter.Options {
		opts := emitter.Options{LogLevel: settings.Get().HysteriaLogLevel}
		if logPath, err := paths.HysteriaLog(); err == nil {
			opts.LogFile = logPath
		}
		return opts
	})
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("failed to load node registry: %w", err)
	}

	subs := subscription.NewManager(registry)
	mon := monitor.New(svc, registry, history)

	a := &App{
		Settings: settings,
		History:  history,
		Parsers:  parsers,
		Emitter:  em,
		Service:  svc,
		Creds:    creds,
		Sessions: sessions,
		Registry: registry,
		Subs:     subs,
		Monitor:  mon,
	}

	a.Web = web.New(web.Options{
		Sessions: sessions,
		Creds:    creds,
		Registry: registry,
		Subs:     subs,
		Service:  svc,
		Monitor:  mon,
		Settings: settings,
		History:  history,
	})

	return a, nil
}

// StartScheduler starts the background jobs: status polling, session
// reaping, and history pruning.
func (a *App) StartScheduler(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.Settings.Get().MonitorInterval()),
		gocron.NewTask(func() {
			a.Monitor.Poll(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			if n := a.Sessions.Reap(); n > 0 {
				slog.Debug("reaped expired sessions", "count", n)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create session reaper job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			retention := time.Duration(a.Settings.Get().HistoryRetentionDays) * 24 * time.Hour
			if err := a.History.Prune(ctx, retention); err != nil {
				slog.Warn("failed to prune history", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create prune job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.Settings.Get().SubscriptionRefreshInterval()),
		gocron.NewTask(func() {
			if len(a.Registry.Subscriptions()) == 0 {
				return
			}
			for _, res := range a.Subs.RefreshAll(ctx) {
				if len(res.Errors) > 0 {
					slog.Warn("subscription auto-refresh had failures", "name", res.Name, "failed", res.Failed)
					continue
				}
				slog.Info("subscription refreshed", "name", res.Name, "added", res.Added, "skipped", res.Skipped)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription refresh job: %w", err)
	}

	scheduler.Start()
	a.scheduler = scheduler

	// Prime the status cache so the first request does not see zeroes.
	go a.Monitor.Poll(ctx)

	return nil
}

// Close shuts down background jobs and releases resources.
func (a *App) Close() error {
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			slog.Warn("scheduler shutdown failed", "error", err)
		}
		a.scheduler = nil
	}
	if a.History != nil {
		return a.History.Close()
	}
	return nil
}
