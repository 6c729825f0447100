package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/stocksim/stocksim-api/internal/auth"
	"github.com/stocksim/stocksim-api/internal/database"
	"github.com/stocksim/stocksim-api/internal/funds"
	"github.com/stocksim/stocksim-api/internal/logging"
	"github.com/stocksim/stocksim-api/internal/market"
	"github.com/stocksim/stocksim-api/internal/orders"
	"github.com/stocksim/stocksim-api/internal/portfolio"
	"github.com/stocksim/stocksim-api/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// init loads .env and configures logging before anything else runs.
// Debug logging can be enabled via the DEBUG environment variable.
func init() {
	godotenv.Load()
	logging.Setup(logging.FromEnv())
}

// main initializes and runs the trading API server with graceful shutdown
// support. It sets up the database, all services and the route table.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Optional redis quote cache
	cache, err := market.NewQuoteCache(os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer cache.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "stocksim-secret-key"
	}

	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.Default()
	router.Use(cors.New(corsConfig()))
	router.Use(middleware.RateLimit())

	// Initialize services and handlers
	authService := auth.NewService(db, jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)

	fundsService := funds.NewService(db)
	fundsHandlers := funds.NewGinHandlers(fundsService)

	portfolioService := portfolio.NewService(db)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)

	ordersService := orders.NewService(db)
	ordersHandlers := orders.NewGinHandlers(ordersService)

	marketService := market.NewService(db, cache)
	marketHandlers := market.NewGinHandlers(marketService)

	// Keep stored watchlist rows converged with the trade book
	refresher := market.NewRefresher(marketService)
	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	defer refresherCancel()

	go refresher.Start(refresherCtx)

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, fundsHandlers, portfolioHandlers, ordersHandlers, marketHandlers)

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

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// corsConfig builds the CORS policy from CORS_ORIGINS, defaulting to the
// local dashboard dev server.
func corsConfig() cors.Config {
	origins := []string{"http://localhost:3000", "http://localhost:3001"}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}

	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth and trading routes: public, as the dashboard expects
// - Account routes (/user/:userId/...): protected by JWT authentication
// - Market routes: public quote and watchlist data
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	fundsHandlers *funds.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	marketHandlers *market.GinHandlers,
) {
	// Auth routes
	router.POST("/register", authHandlers.RegisterHandler())
	router.POST("/login", authHandlers.LoginHandler())
	router.GET("/user/username/:username", authHandlers.GetUserByUsernameHandler())

	// Trading routes
	router.POST("/placeOrder", ordersHandlers.PlaceOrderHandler())
	router.POST("/newOrder", ordersHandlers.NewOrderHandler())
	router.GET("/allOrders", ordersHandlers.GetAllOrdersHandler())
	router.GET("/allHoldings", portfolioHandlers.GetAllHoldingsHandler())
	router.GET("/allPositions", portfolioHandlers.GetAllPositionsHandler())
	router.POST("/createTestFunds", fundsHandlers.CreateTestFundsHandler())

	// Account routes
	account := router.Group("/user/:userId")
	account.Use(middleware.JWTAuth(jwtSecret))
	{
		account.GET("/funds", fundsHandlers.GetUserFundsHandler())
		account.GET("/holdings", portfolioHandlers.GetUserHoldingsHandler())
		account.POST("/holdings", portfolioHandlers.AddHoldingHandler())
		account.GET("/positions", portfolioHandlers.GetUserPositionsHandler())
		account.POST("/positions", portfolioHandlers.AddPositionHandler())
		account.GET("/orders", ordersHandlers.GetUserOrdersHandler())
	}

	// Market routes
	router.POST("/updateStockPrice", marketHandlers.UpdateStockPriceHandler())
	router.POST("/createStockHolding", marketHandlers.CreateStockHoldingHandler())
	router.POST("/updateLocalData", marketHandlers.UpdateLocalDataHandler())
	router.GET("/stock/watchlist", marketHandlers.WatchlistHandler())
	router.GET("/stock/:symbol", marketHandlers.GetStockHandler())
	router.GET("/api/stocks", marketHandlers.ListStocksHandler())
	router.GET("/api/watchlist/realtime", marketHandlers.RealtimeWatchlistHandler())
}
