package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/internal/infrastructure/config"
	"fleettrack-service/internal/infrastructure/oauth"
	"fleettrack-service/internal/infrastructure/persistence"
	"fleettrack-service/internal/infrastructure/reference"
	"fleettrack-service/internal/interface/publisher"
	loadRepo "fleettrack-service/internal/interface/repository"
	"fleettrack-service/internal/interface/telemetry"
	"fleettrack-service/internal/usecase"
	"fleettrack-service/pkg/logger"
	"fleettrack-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/oauth2"
)

const mongoDisconnectTimeout = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Fleet Tracking Service", "version", cfg.AppVersion)

	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		log.Fatal("Invalid display timezone", "timezone", cfg.DisplayTimezone, "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	db := persistence.GetDatabase(mongoClient, cfg.MongoDB)
	loads := loadRepo.NewMongoLoadRepository(db, cfg.LoadsCollection, log)

	// Custom locations are optional
	var depots repository.DepotRepository
	if cfg.PostgresURI != "" {
		gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", "error", err)
		}
		depots = loadRepo.NewGormDepotRepository(gormDB)
	} else {
		log.Warn("POSTGRES_URI not set, custom locations disabled")
	}

	staticDepots, err := reference.LoadDepots(cfg.DepotsFile)
	if err != nil {
		log.Fatal("Failed to load depots", "file", cfg.DepotsFile, "error", err)
	}
	log.Info("Loaded depots", "count", len(staticDepots))

	// Set up telemetry OAuth
	var tokens oauth2.TokenSource
	if cfg.TelemetryTokenURL != "" {
		telemetryOAuth := oauth.NewTelemetryOAuth(
			cfg.TelemetryClientID,
			cfg.TelemetryClientSecret,
			cfg.TelemetryTokenURL,
			cfg.TelemetryScopes,
			cfg.TelemetryUsername,
			cfg.TelemetryPassword,
			log,
		)
		tokens = telemetryOAuth.GetTokenSource(ctx)
	} else {
		log.Warn("TELEMETRY_TOKEN_URL not set, calling telemetry without authentication")
	}
	telemetryClient := telemetry.NewClient(cfg.TelemetryBaseURL, tokens, cfg.TelemetryTimeout, log)
	poller := usecase.NewTelemetryPoller(telemetryClient, cfg.TelemetryOrganisationID, cfg.StaleAfter, log)

	// Set up milestone publisher
	var events repository.MilestonePublisher = publisher.NoopPublisher{}
	var rabbit *publisher.RabbitMQPublisher
	if cfg.AMQPURL != "" {
		amqpConn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		rabbit, err = publisher.NewRabbitMQPublisher(amqpConn, cfg.AMQPExchange)
		if err != nil {
			log.Fatal("Failed to set up milestone publisher", "error", err)
		}
		events = rabbit
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer, "fleettrack")

	capture := usecase.NewAutoCapture(loads, usecase.CaptureConfig{
		DwellThreshold:     cfg.DwellThreshold,
		StationarySpeedKmH: cfg.StationarySpeedKmH,
		DepartureSpeedKmH:  cfg.DepartureSpeedKmH,
		GapGrace:           cfg.GPSGapGrace,
		GapTimeout:         cfg.GPSGapTimeout,
		WriteTimeout:       cfg.TrackingWriteTimeout,
	}, log)

	orchestrator := usecase.NewTrackingOrchestrator(
		loads,
		poller,
		usecase.NewDepotCatalog(staticDepots, depots, log),
		capture,
		usecase.NewTripEstimator(cfg.ETAFloorSpeedKmH, loc),
		events,
		m,
		log,
		usecase.OrchestratorConfig{
			PollInterval: cfg.PollInterval,
			Concurrency:  cfg.WorkerConcurrency,
			Location:     loc,
		},
	)

	// Start tracking in a goroutine
	polling := make(chan struct{})
	go func() {
		defer close(polling)
		orchestrator.StartPolling(ctx)
	}()

	// Set up HTTP server for metrics and the tracking view
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	mux.HandleFunc("/api/v1/tracking", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orchestrator.Tracking()); err != nil {
			log.Error("Failed to encode tracking view", "error", err)
		}
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Stop polling; an in-flight tick finishes its writes

	select {
	case <-polling:
	case <-shutdownCtx.Done():
		log.Warn("Tracking tick still running at shutdown deadline")
	}

	if rabbit != nil {
		if err := rabbit.Close(); err != nil {
			log.Error("RabbitMQ close error", "error", err)
		}
	}

	// Disconnect from MongoDB; the shutdown deadline may already be spent
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer disconnectCancel()
	if err := mongoClient.Disconnect(disconnectCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Fleet Tracking Service stopped")
}
