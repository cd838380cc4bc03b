package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/geofence-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geofence-service/internal/adapter/kafka"
	"github.com/couchcryptid/geofence-service/internal/adapter/mapbox"
	mqttadapter "github.com/couchcryptid/geofence-service/internal/adapter/mqtt"
	"github.com/couchcryptid/geofence-service/internal/adapter/rabbitmq"
	"github.com/couchcryptid/geofence-service/internal/bridge"
	"github.com/couchcryptid/geofence-service/internal/config"
	"github.com/couchcryptid/geofence-service/internal/dispatch"
	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/geofence"
	"github.com/couchcryptid/geofence-service/internal/location"
	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
	"github.com/couchcryptid/geofence-service/internal/platform/sim"
	"github.com/couchcryptid/geofence-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	caps := platform.Capabilities{APILevel: cfg.PlatformAPILevel}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}()
	logger.Info("storage opened", "driver", cfg.StorageDriver)

	device := sim.New(
		sim.WithClock(clock),
		sim.WithLogger(logger),
		sim.WithPermissions(cfg.SimPermissionFine, cfg.SimPermissionBackground),
		sim.WithLocationEnabled(cfg.SimLocationEnabled),
		sim.WithFix(domain.Position{Latitude: cfg.SimLatitude, Longitude: cfg.SimLongitude}),
	)

	// Geofence side.
	repo, err := geofence.NewRepository(ctx, store)
	if err != nil {
		return fmt.Errorf("load geofences: %w", err)
	}
	activation, err := geofence.NewActivationStore(ctx, store)
	if err != nil {
		return fmt.Errorf("load activation flag: %w", err)
	}
	engine := geofence.NewEngine(device, device, logger, metrics)
	scheduler := geofence.NewJobScheduler(clock, cfg.ReregistrationDelay, device, device, logger, metrics)
	defer scheduler.Stop()
	geofences := geofence.NewController(repo, activation, engine, scheduler, caps, logger, metrics)

	// Location side.
	locations := location.NewController(device, device, caps, clock, cfg.LocationTimeoutDefault, logger, metrics)

	module := bridge.New(geofences, locations, device, logger)

	geocoder, err := newGeocoder(cfg, metrics, logger)
	if err != nil {
		return err
	}
	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Error("event publisher close error", "error", err)
		}
	}()
	dispatcher := dispatch.New(geofences, publisher, geocoder, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, module, module, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return dispatcher.Run(gctx, device.Events())
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if cfg.MQTTBroker != "" {
		client, err := mqttadapter.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			stop()
			return errors.Join(err, g.Wait())
		}
		sub := mqttadapter.NewSubscriber(client, device, logger)
		if err := sub.Start(); err != nil {
			stop()
			return errors.Join(fmt.Errorf("mqtt subscribe: %w", err), g.Wait())
		}
		defer sub.Stop()
		logger.Info("device fix ingress enabled", "broker", cfg.MQTTBroker, "topic", mqttadapter.TopicPattern)
	}

	if err := module.Boot(gctx); err != nil {
		stop()
		return errors.Join(fmt.Errorf("boot: %w", err), g.Wait())
	}

	return g.Wait()
}

// newGeocoder returns nil when Mapbox enrichment is disabled.
func newGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.PlaceGeocoder, error) {
	if !cfg.MapboxEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
		return nil, nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
	if err != nil {
		return nil, err
	}
	metrics.GeocodeEnabled.Set(1)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return cached, nil
}

// newPublisher connects the configured event sink.
func newPublisher(cfg *config.Config, logger *slog.Logger) (dispatch.EventPublisher, func() error, error) {
	switch cfg.EventSink {
	case config.SinkKafka:
		w := kafkaadapter.NewWriter(cfg, logger)
		logger.Info("publishing geofence events to kafka", "topic", cfg.KafkaEventTopic)
		return w, w.Close, nil
	case config.SinkRabbitMQ:
		p, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("publishing geofence events to rabbitmq", "exchange", cfg.RabbitMQExchange)
		return p, p.Close, nil
	default:
		return dispatch.NewLogPublisher(logger), func() error { return nil }, nil
	}
}
