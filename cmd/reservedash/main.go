package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohowland/cgc_reserve/internal/pkg/config"
	"github.com/ohowland/cgc_reserve/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/ohowland/cgc_reserve/internal/pkg/webservice"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to a yaml or json config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] load config")
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("[Main] setup logging")
	}
	log.Info().Msg("[Main] Starting reservedash")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("[Main] Building System")
	system, err := buildSystem(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] build system")
	}

	log.Info().Msg("[Main] Linking Archive")
	archive, err := sqldb.New(cfg.Archive, system.Publisher())
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] open archive")
	}
	go archive.Process()

	var broker *natshandler.Handler
	if cfg.NATS.URL != "" {
		log.Info().Msg("[Main] Linking NATS")
		h, err := natshandler.New(cfg.NATS, system.Publisher())
		if err != nil {
			log.Fatal().Err(err).Msg("[Main] nats handler")
		}
		broker = &h
		go broker.Process()
	}

	var telemetry *mqtt.Handler
	if cfg.MQTT.Broker != "" {
		log.Info().Msg("[Main] Linking MQTT")
		h, err := mqtt.New(cfg.MQTT, system.Publisher())
		if err != nil {
			log.Fatal().Err(err).Msg("[Main] mqtt handler")
		}
		telemetry = &h
		go telemetry.Process()
	}

	log.Info().Msg("[Main] Connecting Session Store")
	sessions, closeSessions := buildSessions(cfg)

	app := webservice.New(system, sessions, archive.Archive(), cfg.Model.Defaults())
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("[Main] Starting Server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("[Main] server")
		}
	}()

	<-sigs
	log.Info().Msg("[Main] Stopping system")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("[Main] server shutdown")
	}
	if broker != nil {
		broker.Stop()
	}
	if telemetry != nil {
		telemetry.Stop()
	}
	archive.Stop()
	if err := archive.Archive().Close(); err != nil {
		log.Warn().Err(err).Msg("[Main] close archive")
	}
	closeSessions(ctx)
}

func buildSystem(cfg config.Config) (*root.System, error) {
	opts, err := cfg.Model.Options()
	if err != nil {
		return nil, err
	}
	return root.New(opts)
}

// buildSessions uses Mongo when configured and falls back to memory.
func buildSessions(cfg config.Config) (settings.Store, func(context.Context)) {
	noop := func(context.Context) {}
	if cfg.Mongo.URI == "" {
		return settings.NewMemoryStore(), noop
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := mongodb.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Warn().Err(err).Msg("[Main] mongo unavailable, keeping sessions in memory")
		return settings.NewMemoryStore(), noop
	}
	return store, func(ctx context.Context) {
		if err := store.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("[Main] mongo disconnect")
		}
	}
}
