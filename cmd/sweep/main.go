// README: One-shot sweeper; auto-completes and repairs overdue rides in the database, for cron or manual recovery.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"carpool/internal/config"
	"carpool/internal/infra"
	"carpool/internal/logging"
	"carpool/internal/modules/ride"
	"carpool/internal/modules/timewindow"
)

type flags struct {
	DSN      string
	At       string
	Timezone string
	Timeout  time.Duration
	LogLevel string
}

func main() {
	cfg, err := config.Load(config.WithoutAuth())
	if err != nil {
		logging.New(cfg.Log.Level, cfg.Log.Format).WithError(err).Fatal("invalid configuration")
	}
	f := parseFlags(cfg)
	log := logging.New(f.LogLevel, cfg.Log.Format)

	at := time.Now()
	if f.At != "" {
		t, err := time.Parse(time.RFC3339, f.At)
		if err != nil {
			log.WithError(err).Fatal("invalid -at, use RFC3339")
		}
		at = t
	}
	loc := cfg.Location
	if f.Timezone != loc.String() {
		if loc, err = time.LoadLocation(f.Timezone); err != nil {
			log.WithError(err).Fatal("invalid -tz")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	defer cancel()

	db, err := infra.NewDB(ctx, f.DSN)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer db.Close()

	svc := ride.NewService(ride.Deps{
		Store:  ride.NewStore(db),
		Window: timewindow.New(loc),
		Logger: log,
	})
	report, err := svc.SweepOverdueRides(ctx, at)

	fmt.Printf("auto_completed=%d repaired=%d failed=%d\n", report.AutoCompleted, report.Repaired, report.Failed)
	if err != nil {
		log.WithError(err).Error("sweep finished with errors")
		os.Exit(1)
	}
}

// parseFlags defaults every flag to the loaded config so flags only override.
func parseFlags(cfg config.Config) flags {
	var f flags
	flag.StringVar(&f.DSN, "dsn", cfg.Store.DSN, "Postgres DSN")
	flag.StringVar(&f.At, "at", "", "sweep as of this RFC3339 time (default now)")
	flag.StringVar(&f.Timezone, "tz", cfg.Location.String(), "timezone for travel estimates")
	flag.DurationVar(&f.Timeout, "timeout", 2*time.Minute, "overall timeout")
	flag.StringVar(&f.LogLevel, "log-level", cfg.Log.Level, "log level")
	flag.Parse()
	return f
}
