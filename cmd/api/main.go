package main

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/config"
	"github.com/ficore/wallet-api/internal/domain/auth"
	"github.com/ficore/wallet-api/internal/domain/notification"
	"github.com/ficore/wallet-api/internal/domain/settlement"
	"github.com/ficore/wallet-api/internal/domain/stream"
	"github.com/ficore/wallet-api/internal/domain/user"
	"github.com/ficore/wallet-api/internal/domain/wallet"
	"github.com/ficore/wallet-api/internal/middleware"
	"github.com/ficore/wallet-api/internal/pkg/database"
	"github.com/ficore/wallet-api/internal/pkg/jwt"
	"github.com/ficore/wallet-api/internal/pkg/logger"
	"github.com/ficore/wallet-api/internal/pkg/monnify"
	pkgresponse "github.com/ficore/wallet-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting FiCore Wallet API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	monnifyClient := monnify.NewClient(monnify.Config{
		APIKey:       cfg.MonnifyAPIKey,
		SecretKey:    cfg.MonnifySecretKey,
		ContractCode: cfg.MonnifyContractCode,
		BaseURL:      cfg.MonnifyBaseURL,
	})

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	notificationRepo := notification.NewRepository(db)
	refreshTokenRepo := auth.NewRefreshTokenRepository(db)

	// ---------- Realtime stream ----------
	streamManager := stream.NewManager(stream.Config{
		MaxSessions:       cfg.StreamMaxSessions,
		QueueSize:         cfg.StreamQueueSize,
		HeartbeatInterval: cfg.StreamHeartbeatInterval,
		MaxHeartbeats:     cfg.StreamMaxHeartbeats,
	}, redisClient)
	go streamManager.Run()
	defer streamManager.Shutdown()

	// ---------- Services ----------
	canonicalPrefix := cfg.WalletAccountPrefixes[0]
	walletService := wallet.NewService(walletRepo, userRepo, monnifyClient, canonicalPrefix)
	notificationService := notification.NewService(notificationRepo)
	dispatcher := notification.NewDispatcher(notificationService, streamManager)

	walletService.SetNotifier(dispatcher)

	fees := wallet.FeeSchedule{FundingFee: cfg.WalletFundingFeeKobo}
	resolver := settlement.NewResolver(walletRepo, userRepo, cfg.WalletAccountPrefixes, cfg.KYCMinimumKobo)
	settlementService := settlement.NewService(cfg.MonnifySecretKey, walletRepo, userRepo, resolver, fees, dispatcher)

	authService := auth.NewService(userRepo, jwtService, refreshTokenRepo)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	walletHandler := wallet.NewHandler(walletService)
	settlementHandler := settlement.NewHandler(settlementService)
	notificationHandler := notification.NewHandler(notificationService)
	streamHandler := stream.NewHandler(streamManager, walletService.GetBalance, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Background jobs ----------
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	cleanupJob := notification.NewCleanupJob(notificationRepo, 90)
	go cleanupJob.Start(jobCtx, 6*time.Hour)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	if cfg.IsDevelopment() {
		r.Handle("/debug/vars", expvar.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))

		// Stream clients that cannot set headers pass the token in the query.
		r.Mount("/stream", tokenFromQuery(streamHandler.Routes(authMiddleware)))
	})

	r.Mount("/webhooks", settlementHandler.WebhookRoutes())

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE sessions outlive any sane value; the stream
		// lease bounds them instead.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// tokenFromQuery lets SSE and WebSocket clients authenticate with
// ?token=... since EventSource cannot set an Authorization header.
func tokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}
