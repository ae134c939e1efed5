// README: Entry point; loads config, wires stores, auth and publishers, starts the HTTP server and the ride sweeper.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carpool/internal/config"
	httptransport "carpool/internal/http"
	"carpool/internal/infra"
	"carpool/internal/logging"
	"carpool/internal/modules/fare"
	"carpool/internal/modules/incident"
	"carpool/internal/modules/notify"
	"carpool/internal/modules/review"
	"carpool/internal/modules/ride"
	"carpool/internal/modules/timewindow"
	"carpool/internal/modules/vehicle"
	"carpool/internal/modules/wallet"
	"carpool/internal/types"
)

type stores struct {
	rides     ride.Store
	vehicles  vehicle.Store
	reviews   review.Store
	wallet    wallet.Store
	incidents incident.Store
	prices    map[types.FuelType]float64
}

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("carpool-api stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	st, closeDB, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	var gate ride.SweepGate
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		gate = ride.NewRedisGate(rdb, cfg.Sweep.GateKey, cfg.Sweep.GateTTL)
	}

	publishers := notify.Multi{notify.LogPublisher{Logger: log}}
	var verifier infra.TokenVerifier
	switch cfg.Auth.Mode {
	case "jwt":
		verifier = infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	default:
		app, err := infra.NewFirebaseApp(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredsFile)
		if err != nil {
			return err
		}
		if verifier, err = infra.NewFirebaseVerifier(ctx, app); err != nil {
			return err
		}
		if cfg.Events.FCM {
			msg, err := infra.NewMessaging(ctx, app)
			if err != nil {
				return err
			}
			publishers = append(publishers, notify.NewFCMPublisher(msg))
		}
	}
	if cfg.Events.AMQPURL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPExchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPub := notify.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		defer kafkaPub.Close()
		publishers = append(publishers, kafkaPub)
	}

	events := notify.NewAsync(publishers, cfg.Events.QueueSize, log)
	defer events.Close()

	clock := time.Now
	vehicleSvc := vehicle.NewService(st.vehicles, clock, log)
	rideSvc := ride.NewService(ride.Deps{
		Store:     st.rides,
		Vehicles:  vehicleSvc,
		Fare:      fare.NewCalculator(cfg.Currency, st.prices),
		Window:    timewindow.New(cfg.Location),
		Publisher: events,
		Gate:      gate,
		Clock:     clock,
		Logger:    log,
	})
	reviewSvc := review.NewService(st.reviews, rideSvc, clock, log)
	walletSvc := wallet.NewService(st.wallet, rideSvc, clock, log)
	incidentSvc := incident.NewService(st.incidents, rideSvc, events, clock, log)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Rides:     rideSvc,
		Vehicles:  vehicleSvc,
		Reviews:   reviewSvc,
		Wallet:    walletSvc,
		Incidents: incidentSvc,
		Verifier:  verifier,
		Logger:    log,
		Location:  cfg.Location,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go rideSvc.RunSweeper(ctx, cfg.Sweep.Interval)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTP.Addr, "store": cfg.Store.Kind, "auth": cfg.Auth.Mode}).Info("carpool-api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

// openStores picks the storage backend; fuel prices from the database are
// overridden by any set in the environment.
func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (stores, func(), error) {
	if cfg.Store.Kind == "memory" {
		log.Warn("using in-memory stores; data is lost on restart")
		return stores{
			rides:     ride.NewMemStore(),
			vehicles:  vehicle.NewMemStore(),
			reviews:   review.NewMemStore(),
			wallet:    wallet.NewMemStore(),
			incidents: incident.NewMemStore(),
			prices:    cfg.FuelPrices,
		}, func() {}, nil
	}

	db, err := infra.NewDB(ctx, cfg.Store.DSN)
	if err != nil {
		return stores{}, nil, err
	}
	prices, err := loadPrices(ctx, db, cfg.FuelPrices)
	if err != nil {
		db.Close()
		return stores{}, nil, err
	}
	return stores{
		rides:     ride.NewStore(db),
		vehicles:  vehicle.NewStore(db),
		reviews:   review.NewStore(db),
		wallet:    wallet.NewStore(db),
		incidents: incident.NewStore(db),
		prices:    prices,
	}, db.Close, nil
}

func loadPrices(ctx context.Context, db *pgxpool.Pool, overrides map[types.FuelType]float64) (map[types.FuelType]float64, error) {
	prices, err := fare.NewStore(db).FuelPrices(ctx)
	if err != nil {
		return nil, err
	}
	for fuel, price := range overrides {
		prices[fuel] = price
	}
	return prices, nil
}
