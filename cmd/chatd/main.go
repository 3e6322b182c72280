package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-chat/config"
	"marketplace-chat/internal/api"
	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/composer"
	"marketplace-chat/internal/handler"
	"marketplace-chat/internal/metrics"
	"marketplace-chat/internal/presence"
	chatredis "marketplace-chat/internal/redis"
	"marketplace-chat/internal/server"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/storage"
	"marketplace-chat/internal/store"
	"marketplace-chat/internal/transport"
	"marketplace-chat/internal/websocket"
	"marketplace-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	if cfg.UserID == "" {
		log.Fatal("CHAT_USER_ID is required")
	}

	l := logger.New(cfg.LogMode)
	defer l.Sync()
	logger.SetGlobalLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Errorf("chatd stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	m := metrics.New()
	st := store.New(cfg.UserID, store.WithTypingTTL(cfg.TypingTimeout), store.WithLogger(l))
	tracker := presence.NewTracker()
	apiClient := api.NewClient(cfg.APIBaseURL, cfg.AccessToken, cfg.APITimeout, l)

	var redisClient *goredis.Client
	if cfg.TransportKind == "redis" {
		redisClient = chatredis.NewClient(chatredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
	}

	dialer, err := newDialer(cfg, redisClient, l)
	if err != nil {
		return err
	}
	adapter := transport.NewAdapter(dialer, transport.Config{
		QueueSize:    cfg.OutboundQueueSize,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
	}, l)
	adapter.SetRecorder(m)

	router := services.NewInboundRouter(st, tracker, l)
	adapter.OnEvent(router.Handle)

	var confirmer services.Confirmer = services.HTTPConfirmer{Client: apiClient}
	if cfg.SendVia == "transport" {
		confirmer = services.TransportConfirmer{Transport: adapter}
	}
	messages := services.NewMessageService(st, apiClient, confirmer, services.MessageConfig{
		PageSize:           cfg.PageSize,
		SendTimeout:        cfg.SendTimeout,
		RetryBackoff:       cfg.SendRetryBackoff,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
	}, l)
	messages.SetRecorder(m)
	defer messages.Close()
	conversations := services.NewConversationService(st, apiClient, l)

	resync := services.NewResyncer(st, conversations, messages, l)
	adapter.OnStateChange(func(s transport.State) {
		if s != transport.StateConnected {
			return
		}
		go func() {
			loadCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
			defer cancel()
			_ = resync.Resync(loadCtx)
		}()
	})

	var objects services.ObjectStore
	s3Cfg := storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
		PresignTTL: cfg.S3PresignTTL,
	}
	if s3Cfg.Enabled() {
		client, err := storage.NewClient(ctx, s3Cfg)
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		objects = client
	} else {
		l.Warnf("S3 is not configured, attachments are disabled")
	}
	uploads := services.NewUploadService(objects, cfg.MaxAttachmentBytes, l)

	typing := services.NewTypingNotifier(adapter, cfg.UserID, l)
	comp := composer.New(messages, uploads, typing, composer.Config{TypingTimeout: cfg.TypingTimeout}, l)
	defer comp.Close()

	hub := websocket.NewHub(l)
	hub.SetCounter(m)
	go hub.Run(ctx)
	go hub.Forward(ctx, st.Subscribe())
	go hub.Forward(ctx, tracker.Subscribe())
	go hub.Forward(ctx, comp.Subscribe())
	authorizer := websocket.NewTopicAuthorizer(store.TopicConversations, store.TopicMessages, store.TopicTyping, presence.Topic, composer.Topic)

	go st.RunTypingSweeper(ctx, 0)
	adapter.Connect(ctx)
	defer adapter.Disconnect()

	loadCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
	_ = resync.Resync(loadCtx)
	cancel()

	checks := map[string]server.HealthCheck{
		"transport": func(context.Context) error {
			if s := adapter.State(); s != transport.StateConnected {
				return fmt.Errorf("transport %s", s)
			}
			return nil
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return chatredis.HealthCheck(ctx, redisClient)
		}
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(conversations, st),
		Message:      handler.NewMessageHandler(messages, st),
		Composer:     handler.NewComposerHandler(comp, uploads.MaxBytes()),
		Presence:     handler.NewPresenceHandler(tracker),
		Stream:       websocket.NewHandler(hub, authorizer),
	}, server.Options{
		Verifier:     auth.NewVerifier(cfg.JWTSecret, cfg.UserID),
		Recorder:     m,
		Metrics:      m.Handler(),
		HealthChecks: checks,
		CORSOrigins:  cfg.CORSOrigins,
	})

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newDialer(cfg *config.Config, redisClient *goredis.Client, l *logger.Logger) (transport.Dialer, error) {
	switch cfg.TransportKind {
	case "redis":
		return &transport.RedisDialer{Client: redisClient, UserID: cfg.UserID, Logger: l}, nil
	case "websocket", "":
		return &transport.WebSocketDialer{
			URL:       cfg.TransportURL,
			Token:     cfg.AccessToken,
			WriteWait: 10 * time.Second,
			Logger:    l,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.TransportKind)
	}
}
