package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"

	"oracleboxing-funnel-layer/internal/application"
	"oracleboxing-funnel-layer/internal/domain"
	apiinfra "oracleboxing-funnel-layer/internal/infrastructure/api"
	"oracleboxing-funnel-layer/internal/infrastructure/facebook"
	"oracleboxing-funnel-layer/internal/infrastructure/geo"
	"oracleboxing-funnel-layer/internal/infrastructure/makecom"
	"oracleboxing-funnel-layer/internal/infrastructure/pubsub"
	"oracleboxing-funnel-layer/internal/infrastructure/repository"
	"oracleboxing-funnel-layer/internal/infrastructure/slack"
	"oracleboxing-funnel-layer/internal/infrastructure/stripepay"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	funnelmiddleware "oracleboxing-funnel-layer/internal/infrastructure/middleware"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	// Get configuration from environment
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		logger.Fatal().Msg("STRIPE_SECRET_KEY environment variable is required")
	}

	mongoURI := envOr("MONGODB_URI", "mongodb://localhost:27017")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	databaseURL := envOr("DATABASE_URL", "postgres://localhost:5432/funnel?sslmode=disable")
	siteURL := envOr("SITE_URL", "http://localhost:8080")
	onboardURL := envOr("ONBOARDING_URL", siteURL+"/onboarding")

	// Connect to MongoDB (workflow run logs)
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(envOr("MONGODB_DATABASE", "funnel"))

	// Connect to Redis (visitor state)
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Connect to Postgres (analytics event store)
	eventsDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open events database")
	}
	defer eventsDB.Close()
	if err := eventsDB.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to events database")
	}

	// Initialize infrastructure (implementations)
	payments := stripepay.NewClient(stripeKey, logger)
	capiClient := facebook.NewCAPIClientWithOptions(
		os.Getenv("FB_PIXEL_ID"),
		os.Getenv("FB_ACCESS_TOKEN"),
		"",
		os.Getenv("FB_TEST_EVENT_CODE"),
		logger,
	)
	stateStore := repository.NewRedisStateStore(rdb)
	eventStore := repository.NewPostgresEventStore(eventsDB)
	workflowRepo := repository.NewMongoWorkflowLogRepository(mongoDB)
	geoResolver := geo.NewResolver(logger)
	notifier := slack.NewNotifier(os.Getenv("SLACK_WEBHOOK_URL"), logger)
	webhookSender := makecom.NewSender(stateStore, logger)
	catalog := domain.NewCatalog()

	// Event bus fans analytics events out to the Postgres sink without
	// holding up request handlers.
	eventBus := pubsub.NewEventBus(logger)
	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()
	go application.RunStoreSink(sinkCtx, eventBus, eventStore, logger)

	// Initialize application services
	tracker := application.NewTrackingService(eventBus, stateStore, geoResolver, logger)
	workflows := application.NewWorkflowLogger(workflowRepo, notifier, logger)
	checkoutService := application.NewCheckoutService(payments, catalog, stateStore, tracker, logger, siteURL)
	upsellService := application.NewUpsellService(payments, capiClient, workflows, tracker, logger)
	conversionService := application.NewConversionService(payments, capiClient, stateStore, catalog, tracker, logger, onboardURL)

	handlers := apiinfra.NewHandlers(
		checkoutService,
		upsellService,
		conversionService,
		tracker,
		capiClient,
		webhookSender,
		apiinfra.WebhookURLs{
			ChallengeSignup: os.Getenv("MAKE_CHALLENGE_SIGNUP_URL"),
			AbandonedCart:   os.Getenv("MAKE_ABANDONED_CART_URL"),
		},
		logger,
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(funnelmiddleware.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{siteURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(funnelmiddleware.AttributionMiddleware(logger))

	// Health check - must be public for monitoring
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// Funnel API
	r.Post("/api/checkout/session", handlers.CreateCheckoutSession)
	r.Post("/api/checkout/amount", handlers.UpdateAmount)
	r.Get("/api/checkout/resume", handlers.ResumeCheckout)
	r.Post("/api/upsell/charge", handlers.UpsellCharge)
	r.Get("/api/session", handlers.GetSession)
	r.Post("/api/purchase/report", handlers.ReportPurchase)
	r.Post("/api/facebook-purchase", handlers.FacebookPurchase)
	r.Post("/api/track", handlers.TrackEvent)
	r.Post("/api/webhooks/challenge-signup", handlers.ChallengeSignup)
	r.Post("/api/webhooks/abandoned-cart", handlers.AbandonedCart)

	port := envOr("PORT", "8080")

	logger.Info().Str("port", port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + port + "/swagger/index.html")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}
