package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logging"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	showVersion := flag.Bool("version", false, "print the current schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	m, err := db.NewMigrator(cfg.PostgresDSN, log)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnf("close migrator: %v", err)
		}
	}()

	switch {
	case *showVersion:
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
	case *down > 0:
		if err := m.Down(*down); err != nil {
			log.Fatalf("%v", err)
		}
	default:
		if err := m.Up(); err != nil {
			log.Fatalf("%v", err)
		}
	}
}
