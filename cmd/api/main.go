package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miragespace/subpay/analytics"
	"github.com/miragespace/subpay/auth"
	"github.com/miragespace/subpay/db"
	"github.com/miragespace/subpay/gateway"
	"github.com/miragespace/subpay/invoice"
	"github.com/miragespace/subpay/middleware"
	"github.com/miragespace/subpay/notifier"
	"github.com/miragespace/subpay/order"
	"github.com/miragespace/subpay/payment"
	"github.com/miragespace/subpay/plan"
	"github.com/miragespace/subpay/subscription"
	"github.com/miragespace/subpay/usage"
	"github.com/miragespace/subpay/user"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
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
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	seedFile := flag.String("seed", "", "populate the plan catalog from a JSON file on startup")
	flag.Parse()

	// Determine running environment and initialize structural logger
	env := os.Getenv("ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
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
			"component": "api",
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

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	amqpPublisher, err := notifier.NewAMQPPublisher(logger, os.Getenv("AMQP_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Message Broker",
			zap.Error(err),
		)
	}
	defer amqpPublisher.Close()

	dispatcher, err := notifier.NewDispatcher(notifier.DispatcherOptions{
		Sink:   amqpPublisher,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize notification Dispatcher",
			zap.Error(err),
		)
	}
	defer dispatcher.Close()

	var gatewayClient gateway.Client
	if os.Getenv("GATEWAY") == "stripe" {
		gatewayClient = gateway.NewStripe(os.Getenv("STRIPE_KEY"))
	} else {
		gatewayClient, err = gateway.NewSimulated(gateway.SimulatedOptions{
			Logger: logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize simulated gateway",
				zap.Error(err),
			)
		}
	}

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	authManager, err := auth.New(auth.Options{
		Redis:  rdb,
		Logger: logger,

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		Environment: authEnvironment,
		SMTPAuth:    smtpAuth,
		From:        os.Getenv("SMTP_FROM"),
		Hostname:    os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		EmailOption: auth.EmailOption{
			Name: os.Getenv("SITE_NAME"),
			LinkGenerator: func(uid, token string) string {
				return fmt.Sprintf("%s/login/%s/%s", os.Getenv("SITE_URL"), uid, token)
			},
		},
	})
	if err != nil {
		logger.Fatal("Cannot initialize AuthManager",
			zap.Error(err),
		)
	}

	// Initialize managers
	userManager, err := user.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize UserManager",
			zap.Error(err),
		)
	}

	planManager, err := plan.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize PlanManager",
			zap.Error(err),
		)
	}

	if *seedFile != "" {
		plans, err := plan.LoadSeedFile(*seedFile)
		if err != nil {
			logger.Fatal("Cannot load plan seed file",
				zap.Error(err),
			)
		}
		created, err := planManager.Seed(context.Background(), plans)
		if err != nil {
			logger.Fatal("Cannot seed plan catalog",
				zap.Error(err),
			)
		}
		logger.Info("Plan catalog seeded",
			zap.Int("Created", created),
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

	paymentManager, err := payment.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize PaymentManager",
			zap.Error(err),
		)
	}

	orderManager, err := order.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize OrderManager",
			zap.Error(err),
		)
	}

	usageManager, err := usage.NewManager(logger, db, userManager)
	if err != nil {
		logger.Fatal("Cannot initialize UsageManager",
			zap.Error(err),
		)
	}

	analyticsManager, err := analytics.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize AnalyticsManager",
			zap.Error(err),
		)
	}

	// Initialize engines
	orderVerifier, err := order.NewVerifier(order.VerifierOptions{
		Secret:      os.Getenv("ORDER_SIGNING_SECRET"),
		DebugPrefix: os.Getenv("ORDER_DEBUG_SIGNATURE_PREFIX"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize order Verifier",
			zap.Error(err),
		)
	}

	orderEngine, err := order.NewEngine(order.Options{
		Store:    orderManager,
		Users:    userManager,
		Plans:    planManager,
		Verifier: orderVerifier,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize OrderEngine",
			zap.Error(err),
		)
	}

	invoiceEngine, err := invoice.NewEngine(invoice.Options{
		Store:    invoiceManager,
		Notifier: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize InvoiceEngine",
			zap.Error(err),
		)
	}

	subscriptionEngine, err := subscription.NewEngine(subscription.Options{
		Store:    subscriptionManager,
		Users:    userManager,
		Plans:    planManager,
		Orders:   orderEngine,
		Invoices: invoiceEngine,
		Notifier: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionEngine",
			zap.Error(err),
		)
	}

	paymentEngine, err := payment.NewEngine(payment.Options{
		Store:    paymentManager,
		Invoices: invoiceManager,
		Gateway:  gatewayClient,
		Notifier: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize PaymentEngine",
			zap.Error(err),
		)
	}

	// Initialize service routers
	userService, err := user.NewService(user.ServiceOptions{
		Auth:    authManager,
		Manager: userManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize User Service Router",
			zap.Error(err),
		)
	}

	planService, err := plan.NewService(plan.ServiceOptions{
		Manager: planManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Plan Service Router",
			zap.Error(err),
		)
	}

	subscriptionService, err := subscription.NewService(subscription.ServiceOptions{
		Engine:  subscriptionEngine,
		Manager: subscriptionManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	invoiceService, err := invoice.NewService(invoice.ServiceOptions{
		Engine:  invoiceEngine,
		Manager: invoiceManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Invoice Service Router",
			zap.Error(err),
		)
	}

	paymentService, err := payment.NewService(payment.ServiceOptions{
		Engine:  paymentEngine,
		Manager: paymentManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Payment Service Router",
			zap.Error(err),
		)
	}

	orderService, err := order.NewService(order.ServiceOptions{
		Engine:  orderEngine,
		Manager: orderManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Order Service Router",
			zap.Error(err),
		)
	}

	usageService, err := usage.NewService(usage.ServiceOptions{
		Manager: usageManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Usage Service Router",
			zap.Error(err),
		)
	}

	analyticsService, err := analytics.NewService(analytics.ServiceOptions{
		Manager: analyticsManager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Analytics Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{os.Getenv("SITE_URL")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	rootRouter.Use(middleware.RateLimit(middleware.RateLimitOptions{
		Redis:  rdb,
		Logger: logger,
	}))

	rootRouter.Mount("/login", userService.LoginRouter())
	rootRouter.Mount("/plans", planService.Router())

	rootRouter.Group(func(r chi.Router) {
		r.Use(authManager.Middleware())
		r.Use(authManager.ClaimCheck())

		r.Mount("/me", userService.Router())
		r.Mount("/subscriptions", subscriptionService.Router())
		r.Mount("/invoices", invoiceService.Router())
		r.Mount("/payments", paymentService.Router())
		r.Mount("/orders", orderService.Router())
		r.Mount("/usage", usageService.Router())
	})

	rootRouter.Route("/admin", func(r chi.Router) {
		r.Use(authManager.Middleware())
		r.Use(authManager.ClaimCheck())
		r.Use(authManager.AdminCheck())

		r.Mount("/plans", planService.AdminRouter())
		r.Mount("/invoices", invoiceService.AdminRouter())
		r.Mount("/payments", paymentService.AdminRouter())
		r.Mount("/analytics", analyticsService.Router())
	})

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	srv := &http.Server{
		Handler: rootRouter,
		Addr:    listenAddr,
	}

	go func() {
		logger.Info("API started",
			zap.String("Addr", listenAddr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Cannot start API server",
				zap.Error(err),
			)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Cannot shutdown API server gracefully",
			zap.Error(err),
		)
	}
}
