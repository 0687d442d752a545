package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/streadway/amqp"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/controller"
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

	emailController := &controller.EmailController{EmailService: emailService}
	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Stats:           emailService,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/emails", func(r chi.Router) {
			r.Post("/send", emailController.SendEmail)
			r.Post("/send/bulk", emailController.SendBulk)
			r.Post("/events", emailController.HandleEvent)
			r.Post("/campaigns/{id}/retry", emailController.RetryFailed)
			r.Get("/{id}", emailController.GetEmail)
		})
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", campaignController.CreateCampaign)
			r.Get("/{id}", campaignController.GetCampaign)
			r.Post("/{id}/targets", campaignController.AddTarget)
			r.Post("/{id}/start", campaignController.StartCampaign)
			r.Post("/{id}/pause", campaignController.PauseCampaign)
			r.Post("/{id}/resume", campaignController.ResumeCampaign)
			r.Post("/{id}/cancel", campaignController.CancelCampaign)
			r.Post("/{id}/schedule", campaignController.ScheduleCampaign)
		})
	})

	logger.Info("server listening", slog.String("port", cfg.HTTPPort))
	log.Fatal(http.ListenAndServe(":"+cfg.HTTPPort, r))
}
