package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	nr "github.com/newrelic/go-agent/v3/newrelic"

	"camphub/event-relay/config"
	"camphub/event-relay/consumer"
	"camphub/event-relay/event"
	"camphub/event-relay/job"
	"camphub/event-relay/log"
	"camphub/event-relay/newrelic"
	"camphub/event-relay/outbox"
	"camphub/event-relay/outbox/data"
	"camphub/event-relay/outbox/poller"
	"camphub/event-relay/payments"
	"camphub/event-relay/prometheus"
)

func main() {
	nrApp, stopAgent := newrelic.StartAgent()
	defer stopAgent()

	ctx, cancel := context.WithCancel(context.Background())
	cfg, err := config.NewConfig()
	if err != nil {
		log.Logger.Fatalf("unable to create configuration: %s", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	dbs, dbClose := data.NewDBs(cfg)
	defer dbClose()

	var exitCode int
	switch {
	case cfg.RunCleanup:
		exitCode = runCleanup(dbs, cfg)
	case cfg.RunOptimize:
		exitCode = job.RunOptimize(dbs, cfg)
	case cfg.RunConsumer:
		runConsumer(ctx, dbs, cfg)
	default:
		runDispatcher(ctx, nrApp, dbs, cfg)
	}

	if exitCode > 0 {
		dbClose() // we call this manually because os.Exit() does not respect defer
		os.Exit(exitCode)
	}
}

func runCleanup(dbs data.DBs, cfg *config.Config) int {
	var exitCode int
	dbs.Each(func(db data.DB) {
		repo := outbox.NewRepository(db.Connection(), cfg)
		exitCode += job.RunCleanup(repo, cfg)
	})

	return exitCode
}

func runDispatcher(ctx context.Context, nrApp *nr.Application, dbs data.DBs, cfg *config.Config) {
	var cleanups []func()
	defer func() {
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	dbs.Each(func(db data.DB) {
		repo := outbox.NewRepository(db.Connection(), cfg)
		cleanups = append(cleanups, poller.Start(ctx, cfg, repo, nrApp))

		go prometheus.ObserveQueueSize(repo, ctx)
		go prometheus.ObserveTotalSize(repo, ctx)
	})

	prometheus.StartHttpServer(cfg, dbs)
}

func runConsumer(ctx context.Context, dbs data.DBs, cfg *config.Config) {
	db := dbs[0].Connection()
	writer := outbox.NewWriter(cfg)

	handlers := consumer.Registry{}
	handlers.Register(event.TypePaymentRequested, payments.NewRequestedHandler(db, writer, cfg))
	handlers.Register(event.TypePaymentConfirmed, payments.NewConfirmedHandler(db, cfg))

	go consumer.New(cfg, handlers).Consume(ctx)

	prometheus.StartHttpServer(cfg, dbs)
}
