package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/streadway/amqp"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/db"
	"github.com/jcbodero/sitema-correos-masivos/internal/provider"
	"github.com/jcbodero/sitema-correos-masivos/internal/queue"
	"github.com/jcbodero/sitema-correos-masivos/internal/ratelimit"
	"github.com/jcbodero/sitema-correos-masivos/internal/repository"
	"github.com/jcbodero/sitema-correos-masivos/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	database, err := db.Open(cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("database:", err)
	}
	defer database.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbitmq:", err)
	}
	defer conn.Close()

	rabbit, err := queue.NewRabbitQueue(conn, logger)
	if err != nil {
		log.Fatal("queue setup:", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis:", err)
		}
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(opts), cfg.RateLimitPerHour, cfg.RateWindow)
	} else {
		logger.Warn("REDIS_URL not set, using in-process rate limiter")
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitPerHour, cfg.RateWindow)
	}

	registry, err := provider.NewRegistry(cfg.Providers)
	if err != nil {
		log.Fatal("providers:", err)
	}

	logRepo := &repository.EmailLogRepository{DB: database}
	campaignRepo := &repository.CampaignRepository{DB: database}

	emailService := service.NewEmailService(logRepo, registry, limiter, logger)
	emailService.Timeout = cfg.ProviderTimeout

	campaignService := service.NewCampaignService(
		campaignRepo,
		service.NewContactClient(cfg.ContactServiceURL, cfg.ServiceToken, 0),
		service.NewTemplateClient(cfg.TemplateServiceURL, cfg.ServiceToken, 0),
		rabbit,
		cfg.FromEmail,
		cfg.FromName,
		logger,
	)

	emailProcessor := &service.EmailJobProcessor{
		Sender: emailService,
		Queue:  rabbit,
		Logger: logger,
	}
	campaignProcessor := &service.CampaignJobProcessor{
		Campaigns: campaignService,
		Logger:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emailConsumer := queue.NewConsumer(conn, queue.EmailQueue, cfg.PrefetchCount, cfg.WorkerCount, logger)
	campaignConsumer := queue.NewConsumer(conn, queue.CampaignQueue, cfg.PrefetchCount, cfg.WorkerCount, logger)

	errs := make(chan error, 2)
	go func() { errs <- emailConsumer.Start(ctx, emailProcessor.Handle) }()
	go func() { errs <- campaignConsumer.Start(ctx, campaignProcessor.Handle) }()

	logger.Info("worker started",
		slog.Int("workers", cfg.WorkerCount), slog.Int("prefetch", cfg.PrefetchCount))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errs:
		if err != nil {
			log.Fatal("consumer:", err)
		}
	}
}
