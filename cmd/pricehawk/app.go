package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pricehawk/internal/config"
	"pricehawk/internal/engine"
	"pricehawk/internal/eventbus"
	"pricehawk/internal/remote"
	"pricehawk/internal/resolver"
	"pricehawk/internal/storage"
	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

// app wires the full stack from one config file. Both the daemon and the
// one-shot commands build the same app so every operation sees the same
// store.
type app struct {
	cfg     *config.Config
	manager *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	kv      storage.Store
	store   *track.Store
	client  *remote.Client
	bus     eventbus.Bus
	engine  *engine.Engine
}

func buildApp(path string) (*app, error) {
	m := config.NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(cfg.LogxConfig())
	m.SetLogger(log)

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	kv, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := track.NewStore(kv, log)
	client := remote.NewClient(cfg.Backend, log)
	bus := eventbus.New()
	forced, _ := cfg.ForcedInterval()
	eng := engine.New(store, client, resolver.New(log), bus, forced, log)

	return &app{
		cfg:     cfg,
		manager: m,
		logSvc:  logSvc,
		log:     log,
		kv:      kv,
		store:   store,
		client:  client,
		bus:     bus,
		engine:  eng,
	}, nil
}

func (a *app) close() {
	if a.kv != nil {
		_ = a.kv.Close()
	}
	_ = a.logSvc.Close()
}

// withEngine runs fn against a live engine actor, for one-shot commands.
func withEngine(fn func(ctx context.Context, a *app) error) error {
	a, err := buildApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	actorCtx, stopActor := context.WithCancel(context.Background())
	defer stopActor()
	go func() { _ = a.engine.Run(actorCtx) }()

	return fn(ctx, a)
}

// findLocal matches a user-supplied key against local ids (exact or
// prefix) and catalog keys.
func findLocal(ctx context.Context, a *app, key string) (track.TrackedItem, error) {
	items, err := a.engine.Items(ctx)
	if err != nil {
		return track.TrackedItem{}, err
	}
	for _, it := range items {
		if it.ID == key || strings.EqualFold(it.ASIN, key) {
			return it, nil
		}
	}
	for _, it := range items {
		if len(key) >= 8 && strings.HasPrefix(it.ID, key) {
			return it, nil
		}
	}
	return track.TrackedItem{}, fmt.Errorf("no tracked item matches %q", key)
}
