package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/services"
	backupinfra "github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/backup"
	httphandlers "github.com/MustafaAldelaimi/video-calling-app-fs/internal/handlers/http"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/middleware"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/monitoring"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/reliability"
	repositories "github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/repositories"
	signalrelay "github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/signal"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/backup"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/circuitbreaker"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/config"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/logger"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/retry"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/calls/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			JaegerURL:   cfg.Tracing.JaegerURL,
			SampleRate:  cfg.Tracing.SampleRate,
			Enabled:     true,
		})
		if err != nil {
			log.Warnw("failed to initialize tracing", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(shutdownCtx)
			}()
		}
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	callRepo := repoFactory.CreateCallRepository()

	// Quality reports arrive every few seconds per participant, batch
	// the writes instead of hitting storage one by one.
	qualityRepo := repositories.NewBatchedQualityRepository(
		repoFactory.CreateQualityRepository(),
		100,
		5*time.Second,
		log,
	)
	defer qualityRepo.Close()

	// Initialize monitoring
	collector := monitoring.NewPrometheusCollector()

	// Initialize services. The base service is shielded by a circuit
	// breaker and fronted by a read cache.
	baseCallService := services.NewCallService(callRepo, collector)
	wrappedCallService := reliability.NewCallServiceWrapper(
		baseCallService,
		retry.DefaultConfig(),
		circuitbreaker.DefaultConfig(),
		log,
	)
	callService := services.NewCachedCallService(wrappedCallService, 5*time.Minute)

	qualityService := services.NewQualityService(qualityRepo)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		callService,
	)

	// Initialize signaling relay
	relay := signalrelay.NewServer(callService, collector, zapLogger)
	relay.SetPingInterval(cfg.Signal.PingInterval)
	relay.SetPongTimeout(cfg.Signal.PongTimeout)
	if cfg.RateLimiting.Enabled {
		relay.SetMessageRate(
			cfg.RateLimiting.WebSocket.MessagesPerSecond,
			cfg.RateLimiting.WebSocket.Burst,
		)
	}

	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()

	if client := repoFactory.RedisClient(); client != nil {
		instanceID := uuid.NewString()
		bus := signalrelay.NewRedisBus(client, instanceID, zapLogger)
		relay.SetBus(bus)
		relay.SetPresence(signalrelay.NewPresence(client, instanceID, zapLogger))
		go func() {
			if err := relay.RunBus(busCtx); err != nil && err != context.Canceled {
				log.Warnw("signal bus stopped", "error", err)
			}
		}()
	}

	if cfg.Backup.Enabled {
		storage, err := backup.NewFileStorage(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to create backup storage", "error", err)
		}
		scheduler := backupinfra.NewScheduler(
			backup.NewBackupService(storage, "1.0.0"),
			callRepo,
			qualityRepo,
			backupinfra.Config{
				Interval:      cfg.Backup.Interval,
				RetentionDays: cfg.Backup.RetentionDays,
			},
			log,
		)
		go scheduler.Start(busCtx)
		defer scheduler.Stop()
	}

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("storage", func(ctx context.Context) (bool, error) {
		if err := repoFactory.HealthCheck(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, 30*time.Second, 2*time.Second)
	healthChecker.StartBackgroundChecks(busCtx)

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService)
	callHandler := httphandlers.NewCallHandler(callService, qualityService, qualityRepo, authService)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Setup auth routes (public)
	authHandler.SetupRoutes(router)

	// Setup call routes (authenticated inside the handler)
	callHandler.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		if status.Status != "healthy" {
			c.JSON(503, status)
			return
		}
		c.JSON(200, status)
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// API server
	apiSrv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Relay server on its own listener
	relayMux := http.NewServeMux()
	relayMux.HandleFunc("/ws", relay.HandleWebSocket)
	relayMux.HandleFunc("/health", relay.HealthCheck)
	relaySrv := &http.Server{
		Addr:        cfg.Signal.Address,
		Handler:     relayMux,
		ReadTimeout: 0, // websockets manage their own deadlines
	}

	serverErr := make(chan error, 2)
	go func() {
		log.Infof("Starting API server on %s", cfg.Server.Address)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		log.Infof("Starting signaling relay on %s", cfg.Signal.Address)
		if err := relaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	busCancel()
	if err := relaySrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during relay shutdown", "error", err)
		relaySrv.Close()
	}
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		apiSrv.Close()
	} else {
		log.Info("Server shutdown gracefully")
	}

	log.Info("Signaling server stopped")
}
