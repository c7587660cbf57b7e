package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"golang.org/x/sync/errgroup"

	"github.com/uplinkbot/uplink/internal/config"
	"github.com/uplinkbot/uplink/internal/coordinator"
	"github.com/uplinkbot/uplink/internal/gofile"
	"github.com/uplinkbot/uplink/internal/handlers"
	"github.com/uplinkbot/uplink/internal/intake"
	"github.com/uplinkbot/uplink/internal/logger"
	"github.com/uplinkbot/uplink/internal/relay"
	"github.com/uplinkbot/uplink/internal/server"
	"github.com/uplinkbot/uplink/internal/telegram"
	"github.com/uplinkbot/uplink/internal/version"
	"github.com/uplinkbot/uplink/internal/worker"
)

// botClients pairs the two Telegram identities the relay runs on.
type botClients struct {
	Frontend *telegram.Client
	Backend  *telegram.Client
}

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStore,
			provideClients,
			provideNotifier,
			provideGofile,
			provideWorker,
			provideIntake,
			provideCoordinator,
			provideSweeper,
			providePingHandler,
			provideHealthHandler,
			provideServer,
		),
		fx.Invoke(
			startPollers,
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(cfg config.Config) *relay.Store {
	return relay.NewStore(cfg.Relay.JobDeadline.Std(), cfg.Relay.EvictGrace.Std())
}

func provideClients(log *slog.Logger, cfg config.Config) (botClients, error) {
	frontend, err := telegram.New(log, cfg.Telegram.BotToken, "frontend")
	if err != nil {
		return botClients{}, fmt.Errorf("frontend identity: %w", err)
	}
	var backend *telegram.Client
	if cfg.Telegram.BackendAPIEndpoint != "" {
		backend, err = telegram.NewWithEndpoint(log, cfg.Telegram.BackendToken, cfg.Telegram.BackendAPIEndpoint, "backend")
	} else {
		backend, err = telegram.New(log, cfg.Telegram.BackendToken, "backend")
	}
	if err != nil {
		return botClients{}, fmt.Errorf("backend identity: %w", err)
	}
	return botClients{Frontend: frontend, Backend: backend}, nil
}

func provideNotifier(log *slog.Logger, cfg config.Config, clients botClients) *telegram.Notifier {
	return telegram.NewNotifier(log, clients.Backend, cfg.Telegram.AdminChatID)
}

func provideGofile(log *slog.Logger, cfg config.Config) *gofile.Client {
	return gofile.New(log, cfg.Gofile.APIBase, cfg.Gofile.DefaultServer, cfg.Gofile.UploadTimeout.Std())
}

func provideWorker(log *slog.Logger, cfg config.Config, store *relay.Store, clients botClients, uploader *gofile.Client, notifier *telegram.Notifier) *worker.Worker {
	return worker.New(log, store, clients.Backend, uploader, notifier, cfg.Relay.StagingDir)
}

func provideIntake(log *slog.Logger, cfg config.Config, store *relay.Store, clients botClients) *intake.Intake {
	return intake.New(log, store, clients.Frontend, cfg.Telegram.RelayChatID)
}

func provideCoordinator(log *slog.Logger, cfg config.Config, store *relay.Store, clients botClients, w *worker.Worker) *coordinator.Coordinator {
	return coordinator.New(log, store, clients.Backend, clients.Frontend, w,
		clients.Frontend.SelfID(), cfg.Telegram.RelayChatID)
}

func provideSweeper(log *slog.Logger, cfg config.Config, store *relay.Store, clients botClients) *relay.Sweeper {
	return relay.NewSweeper(log, store, clients.Frontend, cfg.Relay.SweepEvery.Std())
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideHealthHandler(log *slog.Logger, store *relay.Store) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, store)
}

func provideServer(cfg config.Config, ping *handlers.PingHandler, health *handlers.HealthHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, ping, health)
}

// startPollers runs both identities' update loops for the life of the app.
func startPollers(lc fx.Lifecycle, log *slog.Logger, clients botClients, in *intake.Intake, coord *coordinator.Coordinator, notifier *telegram.Notifier) {
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("relay starting",
				slog.String("version", version.GetInfo()),
				slog.String("frontend", clients.Frontend.Username()),
				slog.String("backend", clients.Backend.Username()))
			group.Go(func() error {
				in.Run(groupCtx, clients.Frontend.Updates(groupCtx))
				return nil
			})
			group.Go(func() error {
				coord.Run(groupCtx, clients.Backend.Updates(groupCtx))
				return nil
			})
			notifier.NotifyAdmin(groupCtx, "🟢 uplink "+version.GetInfo()+" is up")
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			notifier.NotifyAdmin(stopCtx, "🛑 uplink shutting down")
			cancel()
			return group.Wait()
		},
	})
}

func startSweeper(lc fx.Lifecycle, sweeper *relay.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return sweeper.Start() },
		OnStop: func(context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
