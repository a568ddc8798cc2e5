package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"pricehawk/internal/engine"
	"pricehawk/internal/eventbus"
	"pricehawk/internal/notify"
	"pricehawk/internal/runtime/supervisor"
	"pricehawk/pkg/logx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync and scheduling daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	a, err := buildApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log.With(logx.String("component", "daemon"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(false),
	)

	// Alert pipeline: the engine publishes qualifying price drops on the
	// bus; the bridge feeds them to the configured channel.
	sender, err := buildSender(a)
	if err != nil {
		return err
	}
	alerts := notify.NewService(sender, a.log)
	alerts.Start(sup.Context())
	defer alerts.Stop(context.Background())

	events, unsub := a.bus.Subscribe(64)
	defer unsub()
	sup.Go0("alerts.bridge", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Type != eventbus.TypeAlert {
					continue
				}
				if alert, ok := ev.Data.(notify.Alert); ok {
					alerts.Publish(alert)
				}
			}
		}
	})

	// Config hot reload: re-apply the logging section in place. Changes to
	// backend/storage/scheduler need a restart and are logged as such.
	sup.GoRestart("config.watch", a.manager.Watch)
	updates := a.manager.Subscribe(4)
	defer a.manager.Unsubscribe(updates)
	sup.Go0("config.apply", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.logSvc.Apply(cfg.LogxConfig())
				log.Info("config reloaded; logging applied (other sections need a restart)")
			}
		}
	})

	// Engine actor plus both schedule drivers.
	port := engine.NewTimerPort(func() {
		if sup.Context().Err() == nil {
			_ = a.engine.RunCycleIfDue(sup.Context())
		}
	})
	defer port.Stop()
	a.engine.SetBackgroundPort(port)

	sup.Go("engine", a.engine.Run)

	tick, _ := a.cfg.ForegroundTick()
	fg := engine.NewForeground(a.engine, tick, a.log)
	if err := fg.Start(sup.Context()); err != nil {
		sup.Cancel()
		return err
	}
	defer fg.Stop()

	// Initial resync so the daemon starts from the authoritative set.
	sup.Go0("initial.sync", func(c context.Context) {
		if err := a.engine.Sync(c, false); err != nil && c.Err() == nil {
			log.Warn("initial sync failed", logx.Err(err))
		}
	})

	notifySystemd(sup, log)

	log.Info("pricehawk daemon started")
	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	return sup.Stop(stopCtx)
}

func buildSender(a *app) (notify.Sender, error) {
	n := a.cfg.Notifications
	if n.Enabled && n.Channel == "telegram" && n.Telegram != nil {
		return notify.NewTelegramSender(n.Telegram.Token, n.Telegram.ChatID)
	}
	return notify.NewLogSender(a.log), nil
}

// notifySystemd reports readiness and feeds the watchdog when running
// under systemd. A no-op everywhere else.
func notifySystemd(sup *supervisor.Supervisor, log logx.Logger) {
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Debug("sd_notify unavailable", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify ready sent")
	}

	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	})
}
