package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/wager-api/internal/auth"
	"github.com/ksred/wager-api/internal/betting"
	"github.com/ksred/wager-api/internal/database"
	"github.com/ksred/wager-api/internal/oracle"
	"github.com/ksred/wager-api/internal/settlement"
	"github.com/ksred/wager-api/internal/wallet"
	"github.com/ksred/wager-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Values from a local .env file, if present
	_ = godotenv.Load()

	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the betting API server with graceful shutdown
// support. It sets up all required services, database connections, API
// routes and the background settlement processor.
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "wager-secret-key"
	}

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// No feed URL means the oracle serves synthetic quotes only
	var feed *oracle.FeedClient
	if feedURL := os.Getenv("PRICE_FEED_URL"); feedURL != "" {
		feed = oracle.NewFeedClient(feedURL)
	}
	priceOracle := oracle.NewOracle(oracle.NewDatabase(db), feed, time.Now().UnixNano())
	oracleHandlers := oracle.NewGinHandlers(priceOracle)

	walletService := wallet.NewService(db)
	walletHandlers := wallet.NewGinHandlers(walletService)

	bettingService := betting.NewService(db, priceOracle)
	bettingHandlers := betting.NewGinHandlers(bettingService)

	settlementService := settlement.NewService(db, priceOracle)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start settlement processor
	settlementProcessor := settlement.NewProcessor(settlementService)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go settlementProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, oracleHandlers, walletHandlers, bettingHandlers, settlementHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the processor before the HTTP server so no settlement is cut off
	processorCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Price and leaderboard routes: Public read-only endpoints
// - Bet, balance and bonus routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	oracleHandlers *oracle.GinHandlers,
	walletHandlers *wallet.GinHandlers,
	bettingHandlers *betting.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public read-only routes
		v1.GET("/prices/:symbol", oracleHandlers.GetPriceHandler())
		v1.GET("/prices/:symbol/history", oracleHandlers.GetPriceHistoryHandler())
		v1.GET("/leaderboard", walletHandlers.LeaderboardHandler())

		// User routes
		user := v1.Group("")
		user.Use(middleware.JWTAuth(jwtSecret))
		{
			user.POST("/bets", bettingHandlers.PlaceBetHandler())
			user.GET("/bets", bettingHandlers.ListBetsHandler())
			user.GET("/bets/:bet_id", bettingHandlers.GetBetHandler())
			user.DELETE("/bets/:bet_id", bettingHandlers.CancelBetHandler())
			user.GET("/balance", walletHandlers.GetBalanceHandler())
			user.POST("/bonus", walletHandlers.ClaimBonusHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/settlement/:bet_id", settlementHandlers.ResolveBetHandler())
		}
	}
}
