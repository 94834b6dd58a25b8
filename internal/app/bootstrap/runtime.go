package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cacheadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/cache"
	chatadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/chat"
	eventadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/events"
	httpadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/http"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/media"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/memory"
	paymentadapter "github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/payments"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/postgres"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/application"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	images     *application.ImageCache
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var cleanups []func()

	docs := ports.DocumentStore(memory.NewDocumentStore())
	if cfg.DatabaseURL != "" {
		db, dbErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if dbErr != nil {
			return nil, dbErr
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, dbErr
		}
		if migErr := postgres.RunMigrations(ctx, db); migErr != nil {
			_ = sqlDB.Close()
			return nil, migErr
		}
		docs = postgres.NewDocumentStore(db)
		cleanups = append(cleanups, func() { _ = sqlDB.Close() })
	} else {
		logger.WarnContext(ctx, "no database configured, documents held in memory")
	}

	cacheStore := ports.Cache(cacheadapter.NewMemoryCache())
	if cfg.RedisURL != "" {
		redisClient, redisErr := cacheadapter.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			runAll(cleanups)
			return nil, redisErr
		}
		cacheStore = cacheadapter.NewRedisCache(redisClient)
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
	} else {
		logger.WarnContext(ctx, "no redis configured, status cache held in memory")
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			"session.started":       cfg.TopicSessionStarted,
			"session.ended":         cfg.TopicSessionEnded,
			"subscription.archived": cfg.TopicSubsArchived,
			"media.cache_cleared":   cfg.TopicMediaCleared,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}

	gateway := chatadapter.NewClient(chatadapter.ClientConfig{
		BaseURL: cfg.ChatBaseURL,
		Secret:  cfg.ChatSecret,
	})
	processor := paymentadapter.NewClient(paymentadapter.ClientConfig{
		BaseURL: cfg.PaymentBaseURL,
		APIKey:  cfg.PaymentAPIKey,
	})
	mediaStore := media.NewFilesystemStore(filepath.Join(cfg.CacheDir, "manifest.json"), cfg.DownloadTimeout)

	images := application.NewImageCache(application.ImageCacheDeps{
		Media:  mediaStore,
		Logger: logger,
		Dir:    cfg.CacheDir,
	})
	if err := images.Load(ctx); err != nil {
		runAll(cleanups)
		return nil, fmt.Errorf("load image cache: %w", err)
	}

	subs := application.NewSubscriptionManager(application.SubscriptionManagerDeps{
		Documents:   docs,
		Cache:       cacheStore,
		Events:      publisher,
		Logger:      logger,
		ServiceName: cfg.ServiceID,
		StatusTTL:   cfg.StatusCacheTTL,
	})
	chat := application.NewChatManager(application.ChatManagerDeps{
		Gateway: gateway,
		Logger:  logger,
	})
	payments := application.NewPaymentFlow(application.PaymentFlowDeps{
		Processor:       processor,
		Documents:       docs,
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	session := application.NewSession(application.SessionDeps{
		Config: application.SessionConfig{
			ServiceName:         cfg.ServiceID,
			ContentListingLimit: cfg.ContentListingLimit,
			PreloadThumbnails:   cfg.PreloadThumbnails,
		},
		Chat:      chat,
		Subs:      subs,
		Images:    images,
		Documents: docs,
		Events:    publisher,
		Logger:    logger,
	})

	handler := httpadapter.NewHandler(session, subs, images, payments)
	router := httpadapter.NewRouter(handler, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		runAll(cleanups)
		return nil, err
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		images:     images,
		cleanupFn: func(ctx context.Context) {
			if flushErr := images.Flush(ctx); flushErr != nil {
				logger.WarnContext(ctx, "final manifest flush failed", "error", flushErr)
			}
			for _, closer := range closers {
				_ = closer.Close()
			}
			runAll(cleanups)
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "runtime started", "http_port", r.cfg.HTTPPort, "grpc_port", r.cfg.GRPCPort)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
