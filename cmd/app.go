package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Shivanand-hulikatti/eventease/internal/config"
	"github.com/Shivanand-hulikatti/eventease/internal/database"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
	"github.com/Shivanand-hulikatti/eventease/internal/service"
)

// app holds the wired layers and what must be released on exit.
type app struct {
	cfg     *config.Config
	svc     *service.EventService
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("cannot load a config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.Level(cfg.Logger.Level),
		AddSource: cfg.Logger.AddSource,
	})))
	return cfg, nil
}

// newApp connects storage and the notification backend and builds the service.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var backend notify.Notifier = notify.LogNotifier{}
	if cfg.Notify.Driver == "amqp" {
		pub, err := notify.NewAMQPPublisher(cfg.Notify.AMQPConfig)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		backend = pub
	}

	a.svc, err = service.NewEventService(repo,
		service.WithNotifier(notify.NewDispatcher(backend, cfg.Notify.Timeout)),
		service.WithInvitationTTL(cfg.Workflow.InvitationTTL),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openRepository(ctx context.Context) (repository.Repository, error) {
	if a.cfg.Storage.Driver == "memory" {
		slog.Default().WarnContext(ctx, "using in-memory storage, data is lost on exit")
		return repository.NewMemoryStore(), nil
	}

	pool, err := database.NewPool(ctx, a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	slog.Default().InfoContext(ctx, "connected to postgres")

	if a.cfg.DB.Automigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return nil, err
		}
	}
	return repository.NewPostgresStore(pool), nil
}
