package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"praxis-billing/controllers"
	"praxis-billing/database"
	"praxis-billing/logger"
	"praxis-billing/middlewares"
	"praxis-billing/models"
	"praxis-billing/routes"
	"praxis-billing/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing REST API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	if err := cfg.Validate(); err != nil {
		return err
	}
	middlewares.SetJWTSecret(cfg.Secret())

	// ---- Database (public)
	if err := database.Connect(cfg); err != nil {
		return err
	}
	if err := database.AutoMigrate(); err != nil {
		return fmt.Errorf("public automigrate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Mail delivery: Redis queue when available, inline otherwise
	var dispatcher *services.Dispatcher
	if cfg.SMTPEnabled() {
		var rdb *redis.Client
		if cfg.RedisURL != "" {
			c, err := services.NewRedis(cfg.RedisURL)
			if err != nil {
				log.Warn().Err(err).Msg("redis unavailable, sending mail inline")
			} else {
				rdb = c
				defer rdb.Close()
			}
		}
		dispatcher = services.NewDispatcher(rdb, services.NewSMTPMailer(cfg))
		dispatcher.AfterSend = stampSent
		dispatcher.StartWorkerPool(ctx, cfg.WorkerPoolSize)
		log.Info().Bool("queued", dispatcher.Async()).Msg("invoice mail enabled")
	} else {
		log.Warn().Msg("SMTP not configured, invoice mail disabled")
	}

	controllers.Configure(&services.InvoiceService{
		PDFDir:       cfg.PDFStoragePath,
		Currency:     cfg.Currency,
		CreditorName: cfg.CreditorName,
		CreditorIBAN: cfg.CreditorIBAN,
		Dispatcher:   dispatcher,
	}, services.NewTariffClient(cfg.TariffAPIURL, time.Duration(cfg.TariffAPITimeoutSecs)*time.Second))

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.BodyLimitBytes(),
		AppName:      "praxis-billing " + version,
	})

	app.Use(requestid.New())
	app.Use(middlewares.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: time.Duration(cfg.RateLimitWindowSecs) * time.Second,
	}))

	routes.Register(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("API server starting")
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}

// stampSent records delivery on the invoice in the clinic schema.
func stampSent(ctx context.Context, job services.EmailJob) error {
	return database.WithTenant(ctx, job.Schema, func(tx *gorm.DB) error {
		return tx.Model(&models.Invoice{}).
			Where("id = ?", job.InvoiceID).
			Update("sent_at", time.Now().UTC()).Error
	})
}
