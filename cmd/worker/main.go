package main

import (
	"log"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miragespace/subpay/auth"
	"github.com/miragespace/subpay/mailer"
	"github.com/miragespace/subpay/notifier"

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
			"component": "worker",
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

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	emailMailer, err := mailer.New(mailer.Options{
		Logger:   logger,
		SMTPAuth: smtpAuth,
		Hostname: os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		From:     os.Getenv("SMTP_FROM"),
		Name:     os.Getenv("SITE_NAME"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Mailer",
			zap.Error(err),
		)
	}

	consumer, err := notifier.NewAMQPConsumer(logger, os.Getenv("AMQP_URI"), "billing_emails")
	if err != nil {
		logger.Fatal("Cannot connect to Message Broker",
			zap.Error(err),
		)
	}
	defer consumer.Close()

	events, err := consumer.Receive()
	if err != nil {
		logger.Fatal("Cannot consume billing events",
			zap.Error(err),
		)
	}

	go func() {
		for event := range events {
			if err := emailMailer.Handle(event); err != nil {
				// fail through: the event is already acknowledged
				continue
			}
		}
	}()

	logger.Info("Email worker started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c
}
