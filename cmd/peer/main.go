package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/negotiation"
	signalrelay "github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/signal"
	webrtcinfra "github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/webrtc"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/config"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/logger"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/retry"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/utils"

	"github.com/pion/webrtc/v3"
)

func main() {
	var (
		serverURL     = flag.String("server", "ws://localhost:8081/ws", "signaling relay URL")
		callID        = flag.String("call", "", "call ID to join (required)")
		participantID = flag.String("id", "", "participant ID (generated if empty)")
		displayName   = flag.String("name", "", "display name")
		configPath    = flag.String("config", "configs/config.yaml", "config file path")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	if *callID == "" {
		log.Fatal("call ID is required (-call)")
	}
	localID := *participantID
	if localID == "" {
		localID = utils.GenerateParticipantID()
	}

	// ICE server configuration
	var iceServers []webrtc.ICEServer
	for _, server := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	engineConfig := webrtcinfra.EngineConfig{ICEServers: iceServers}
	engineConfig.PortRange.Min = cfg.WebRTC.PortRange.Min
	engineConfig.PortRange.Max = cfg.WebRTC.PortRange.Max
	engine := webrtcinfra.NewEngine(engineConfig, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
	channel, err := signalrelay.Dial(dialCtx, signalrelay.DialOptions{
		ServerURL:     *serverURL,
		CallID:        domain.CallID(*callID),
		ParticipantID: domain.ParticipantID(localID),
		DisplayName:   *displayName,
		Retry:         retry.DefaultConfig(),
	}, zapLogger)
	dialCancel()
	if err != nil {
		log.Fatalw("failed to connect to relay", "error", err)
	}
	defer channel.Close()

	coordinator := negotiation.NewCoordinator(
		negotiation.Config{
			CallID:           domain.CallID(*callID),
			LocalID:          domain.ParticipantID(localID),
			DisplayName:      *displayName,
			RetryBaseDelay:   cfg.Mesh.RetryBaseDelay,
			MaxRetryAttempts: cfg.Mesh.MaxRetryAttempts,
		},
		channel,
		engine,
		log,
		nil,
	)

	coordinator.OnLinkEvent(func(ev domain.LinkEvent) {
		log.Infow("link state changed",
			"remote", ev.RemoteID,
			"state", ev.State,
			"terminal", ev.Terminal,
		)
	})

	runErr := make(chan error, 2)
	go func() {
		runErr <- coordinator.Run(ctx)
	}()
	go func() {
		runErr <- channel.Pump(ctx, coordinator)
	}()

	coordinator.MediaReady()

	log.Infow("joined call",
		"call_id", *callID,
		"participant_id", localID,
		"server", *serverURL,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.Errorw("peer stopped", "error", err)
		}
	case sig := <-sigChan:
		log.Infow("shutting down", "signal", sig)
	}

	cancel()
	log.Info("peer stopped")
}
