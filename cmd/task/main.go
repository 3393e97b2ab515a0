package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miragespace/subpay/auth"
	"github.com/miragespace/subpay/db"
	"github.com/miragespace/subpay/invoice"
	"github.com/miragespace/subpay/notifier"
	"github.com/miragespace/subpay/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var environment auth.Environment
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("ENV")
	if "production" == env {
		dotFile = ".env.production"
		environment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		environment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(environment),
		Debug:       environment == auth.EnvDevelopment,
	}); err != nil {
		log.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "task",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	// Initialize backend connections
	db, err := db.New(db.Options{
		URI:    os.Getenv("POSTGRES_URI"),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	invoiceManager, err := invoice.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize InvoiceManager",
			zap.Error(err),
		)
	}

	// the sweeps emit no notifications
	invoiceEngine, err := invoice.NewEngine(invoice.Options{
		Store:    invoiceManager,
		Notifier: notifier.Nop{},
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize InvoiceEngine",
			zap.Error(err),
		)
	}

	interval := time.Hour
	if raw := os.Getenv("TASK_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Fatal("Invalid TASK_INTERVAL",
				zap.Error(err),
			)
		}
		interval = parsed
	}

	ctx, cancel := context.WithCancel(context.Background())

	runSweeps := func() {
		expired, err := subscriptionManager.MarkExpired(ctx, time.Now())
		if err != nil {
			logger.Error("Expiry scan failed",
				zap.Error(err),
			)
		} else if expired > 0 {
			logger.Info("Expiry scan completed",
				zap.Int64("Expired", expired),
			)
		}

		if _, err := invoiceEngine.SweepOverdue(ctx); err != nil {
			logger.Error("Overdue sweep failed",
				zap.Error(err),
			)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Billing task started",
		zap.Duration("Interval", interval),
	)
	runSweeps()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runSweeps()
		case <-c:
			cancel()
			return
		}
	}
}
