package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logging"
	"github.com/hackgods/therapy-scheduling/internal/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Infof("reminder-worker starting in env=%s schedule=%q lead=%s window=%s",
		cfg.Env, cfg.ReminderSchedule, cfg.ReminderLead, cfg.ReminderWindow)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	notifier := notification.NewDispatcher(notification.NewLogNotifier(log), log, 30*time.Second)
	defer notifier.Close()

	// reminders never book, so no locker or basket store
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), nil, nil, notifier, cfg, log)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ReminderSchedule, func() { runOnce(rootCtx, svc, log) }); err != nil {
		log.Fatalf("invalid REMINDER_SCHEDULE %q: %v", cfg.ReminderSchedule, err)
	}

	// catch up after a restart; bookings already reminded are claimed and skipped
	runOnce(rootCtx, svc, log)
	c.Start()

	<-rootCtx.Done()
	log.Info("shutdown signal received, stopping reminder worker")
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *appointment.Service, log *logrus.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.SendReminders(runCtx)
	if err != nil {
		log.Errorf("reminder run error: %v", err)
		return
	}
	log.WithFields(logrus.Fields{
		"sent":     sent,
		"duration": time.Since(start).String(),
	}).Info("reminder run complete")
}
