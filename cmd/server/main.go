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
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/GeoLink/config"
	appmodel "github.com/sifan077/GeoLink/internal/app/model"
	apprepository "github.com/sifan077/GeoLink/internal/app/repository"
	appserver "github.com/sifan077/GeoLink/internal/app/server"
	appservice "github.com/sifan077/GeoLink/internal/app/service"
	"github.com/sifan077/GeoLink/internal/app/shortcode"
	"github.com/sifan077/GeoLink/internal/infra/geoip"
	"github.com/sifan077/GeoLink/internal/infra/logger"
	infraNATS "github.com/sifan077/GeoLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/GeoLink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/GeoLink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/GeoLink/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.MustInit(logger.FromConfig(cfg.Log))
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.Bool("geo_enabled", cfg.Geo.Enabled),
		zap.Bool("postgres_enabled", cfg.Postgres.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
		zap.Bool("tracking_tokens", cfg.Server.RedirectSecret != ""),
	)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Connected to Redis successfully", zap.String("addr", infraRedis.Addr(cfg.Redis)))
	}

	var (
		natsConn *nats.Conn
		js       nats.JetStreamContext
	)
	if cfg.NATS.Enabled {
		natsConn, js, err = infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		if err := appservice.EnsureStream(js); err != nil {
			log.Fatal("Failed to prepare click stream", zap.Error(err))
		}
		log.Info("Connected to NATS successfully", zap.String("url", infraNATS.URL(cfg.NATS)))
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.Enabled {
		if natsConn == nil {
			log.Fatal("Click archive requires NATS; enable nats or disable postgres")
		}

		gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		defer func() { _ = infraPostgres.Close(gormDB) }()

		if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.ClickArchive{}); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}

		pool, err = infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()
		log.Info("Connected to Postgres successfully")

		archiveRepo := apprepository.NewClickArchiveRepository(gormDB)

		archiver := appservice.NewClickArchiver(js, log.Named("archiver"), archiveRepo)
		if err := archiver.Start(); err != nil {
			log.Fatal("Failed to start click archiver", zap.Error(err))
		}
		defer archiver.Stop()

		pruner := appservice.NewArchivePruner(log.Named("pruner"), archiveRepo, cfg.Archive.Retention, cfg.Archive.PruneInterval)
		pruner.Start()
		defer pruner.Stop()
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	store := apprepository.NewMemoryStore(apprepository.MemoryOptions{
		Generator:         shortcode.NewGenerator(shortcode.WithMaxAttempts(cfg.Store.MaxCodeAttempts)),
		BloomCapacity:     cfg.Store.BloomCapacity,
		BloomFalsePosRate: cfg.Store.BloomFalsePosRate,
	})

	var locator geoip.Locator = geoip.Nop{}
	if cfg.Geo.Enabled {
		locator = geoip.NewClient(geoip.ClientConfig{
			Endpoint:          cfg.Geo.Endpoint,
			Timeout:           cfg.Geo.Timeout,
			RequestsPerMinute: cfg.Geo.RequestsPerMinute,
			Logger:            log.Named("geoip"),
		})
		if redisClient != nil {
			locator = geoip.NewCachedLocator(locator, redisClient, cfg.Geo.CacheTTL, log.Named("geoip"))
		}
	}

	var publisher appservice.EventPublisher
	if js != nil {
		publisher = appservice.NewClickPublisher(js)
	}

	server := appserver.New(appserver.Dependencies{
		Logger:    log,
		Config:    cfg.Server,
		RateLimit: cfg.RateLimit,
		Links:     appservice.NewLinkService(store, log.Named("links")),
		Clicks: appservice.NewClickService(appservice.ClickDeps{
			Store:     store,
			Locator:   locator,
			Publisher: publisher,
			Logger:    log.Named("clicks"),
		}),
		Postgres: pool,
		Redis:    redisClient,
		NATS:     natsConn,
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
	if err := server.Listen(cfg.Server.Addr); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}
