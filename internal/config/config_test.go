package config

import (
	"strings"
	"testing"
	"time"

	"carpool/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CARPOOL_FIREBASE_PROJECT_ID", "carpool-dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Store.Kind != "postgres" || cfg.Auth.Mode != "firebase" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Location.String() != "Asia/Kolkata" || cfg.Currency != "INR" {
		t.Fatalf("location=%s currency=%s", cfg.Location, cfg.Currency)
	}
	if cfg.Sweep.Interval != time.Minute || cfg.Sweep.GateKey != "carpool:sweep:lease" {
		t.Fatalf("unexpected sweep config: %+v", cfg.Sweep)
	}
	if cfg.Events.QueueSize != 256 {
		t.Fatalf("unexpected queue size %d", cfg.Events.QueueSize)
	}
	if len(cfg.FuelPrices) != 0 || len(cfg.Events.KafkaBrokers) != 0 {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.FuelPrices, cfg.Events)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CARPOOL_AUTH_MODE", "jwt")
	t.Setenv("CARPOOL_JWT_SECRET", "0123456789abcdef")
	t.Setenv("CARPOOL_STORE", "Memory")
	t.Setenv("CARPOOL_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CARPOOL_FUEL_PRICE_DIESEL", "91.5")
	t.Setenv("CARPOOL_SWEEP_INTERVAL", "15s")
	t.Setenv("CARPOOL_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Kind != "memory" || cfg.Auth.Mode != "jwt" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Events.KafkaBrokers)
	}
	if cfg.FuelPrices[types.FuelDiesel] != 91.5 || cfg.Sweep.Interval != 15*time.Second || cfg.Location != time.UTC {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	t.Setenv("CARPOOL_AUTH_MODE", "jwt")
	t.Setenv("CARPOOL_JWT_SECRET", "short")
	t.Setenv("CARPOOL_STORE", "mongo")
	t.Setenv("CARPOOL_SWEEP_INTERVAL", "soon")
	t.Setenv("CARPOOL_FUEL_PRICE_PETROL", "-3")
	t.Setenv("CARPOOL_TIMEZONE", "Mars/Base")
	t.Setenv("CARPOOL_EVENT_QUEUE_SIZE", "0")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"CARPOOL_JWT_SECRET", "CARPOOL_STORE", "CARPOOL_SWEEP_INTERVAL", "CARPOOL_FUEL_PRICE_PETROL", "CARPOOL_TIMEZONE", "CARPOOL_EVENT_QUEUE_SIZE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadWithoutAuth(t *testing.T) {
	t.Setenv("CARPOOL_AUTH_MODE", "jwt")
	t.Setenv("CARPOOL_JWT_SECRET", "")
	t.Setenv("CARPOOL_FIREBASE_PROJECT_ID", "")
	t.Setenv("CARPOOL_DB_DSN", "postgres://sweeper@db/carpool")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CARPOOL_JWT_SECRET") {
		t.Fatalf("expected auth error, got %v", err)
	}
	cfg, err := Load(WithoutAuth())
	if err != nil {
		t.Fatalf("load without auth: %v", err)
	}
	if cfg.Store.DSN != "postgres://sweeper@db/carpool" {
		t.Fatalf("unexpected dsn %q", cfg.Store.DSN)
	}

	t.Setenv("CARPOOL_STORE", "mongo")
	if _, err := Load(WithoutAuth()); err == nil || !strings.Contains(err.Error(), "CARPOOL_STORE") {
		t.Fatalf("expected store error, got %v", err)
	}
}
