package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stocksim/stocksim-api/internal/auth"
	"github.com/stocksim/stocksim-api/internal/database"
	"github.com/stocksim/stocksim-api/internal/funds"
	"github.com/stocksim/stocksim-api/internal/market"
	"github.com/stocksim/stocksim-api/internal/orders"
	"github.com/stocksim/stocksim-api/internal/portfolio"
	"github.com/stocksim/stocksim-api/internal/types"
	"github.com/stocksim/stocksim-api/pkg/middleware"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	jwtSecret     = "stocksim-secret-key"
)

var (
	modes = []string{types.ModeBuy, types.ModeSell}

	// Rough reference prices, the walk jitters around these
	basePrices = map[string]float64{
		"INFY":     1567.95,
		"TCS":      3194.80,
		"RELIANCE": 2112.40,
		"HDFCBANK": 1522.35,
		"SBIN":     430.20,
	}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the trading API
type simulationClient struct {
	baseURL   string
	authToken string
	userID    string
	client    *http.Client
	stats     map[string]*routeStats
	mu        sync.Mutex
}

// newSimulationClient creates and initializes a new simulation client.
// It registers a fresh account with the API, which also provisions the
// account's opening funds balance.
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"register":  {name: "Register"},
			"place":     {name: "Place Order"},
			"funds":     {name: "Get Funds"},
			"holdings":  {name: "Get Holdings"},
			"positions": {name: "Get Positions"},
			"orders":    {name: "Get Orders"},
		},
	}

	// Register a throwaway account
	if err := sc.register(); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	return sc, nil
}

// record times a call and tracks its outcome under the given stats key
func (sc *simulationClient) record(key string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[key].addDuration(time.Since(start))
	if failed {
		sc.stats[key].failures++
	}
}

// register creates a simulation account and stores its token and user ID
func (sc *simulationClient) register() error {
	start := time.Now()
	failed := true
	defer func() { sc.record("register", start, failed) }()

	suffix := uuid.New().String()[:8]
	body, err := json.Marshal(auth.RegisterRequest{
		Username: "sim_" + suffix,
		Email:    fmt.Sprintf("sim-%s@stocksim.dev", suffix),
		Password: "simulation",
	})
	if err != nil {
		return err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/register", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result auth.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if result.Token == "" || result.User.ID == "" {
		return fmt.Errorf("incomplete register response")
	}

	sc.authToken = result.Token
	sc.userID = result.User.ID
	failed = false
	return nil
}

// placeOrder submits an order to the API and returns the placement response.
// Business rejections (insufficient funds, short sells) come back as API
// errors; the caller decides how to count them.
func (sc *simulationClient) placeOrder(req types.PlaceOrderRequest) (*types.PlaceOrderResponse, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("place", start, failed) }()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/placeOrder", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Place order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("place order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result types.PlaceOrderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if result.Order == nil {
		return nil, fmt.Errorf("no order in response: %s", string(respBody))
	}

	failed = false
	return &result, nil
}

// getJSON performs an authenticated GET against an account route and
// decodes the response into out
func (sc *simulationClient) getJSON(key, path string, out any) error {
	start := time.Now()
	failed := true
	defer func() { sc.record(key, start, failed) }()

	req, err := http.NewRequest("GET", sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Account response")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	failed = false
	return nil
}

// getFunds retrieves the account's funds balance
func (sc *simulationClient) getFunds() (*types.Funds, error) {
	var f types.Funds
	if err := sc.getJSON("funds", fmt.Sprintf("/user/%s/funds", sc.userID), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// getHoldings retrieves the account's holdings
func (sc *simulationClient) getHoldings() ([]types.Holding, error) {
	var h []types.Holding
	if err := sc.getJSON("holdings", fmt.Sprintf("/user/%s/holdings", sc.userID), &h); err != nil {
		return nil, err
	}
	return h, nil
}

// getPositions retrieves the account's positions
func (sc *simulationClient) getPositions() ([]types.Position, error) {
	var p []types.Position
	if err := sc.getJSON("positions", fmt.Sprintf("/user/%s/positions", sc.userID), &p); err != nil {
		return nil, err
	}
	return p, nil
}

// getOrderBook retrieves the account's order book
func (sc *simulationClient) getOrderBook() (*types.OrderBook, error) {
	var ob types.OrderBook
	if err := sc.getJSON("orders", fmt.Sprintf("/user/%s/orders", sc.userID), &ob); err != nil {
		return nil, err
	}
	return &ob, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the trading simulation
// It starts a local API server and simulates multiple concurrent trading clients
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of orders to process
	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Str("user_id", simClient.userID).Msg("Starting simulation")

	// Collect statistics during processing
	stats := struct {
		PlacedOrders   int
		ExecutedOrders int
		RejectedOrders int
		TotalValue     float64
		StartTime      time.Time
		Symbols        map[string]int
		Modes          map[string]int
	}{
		StartTime: time.Now(),
		Symbols:   make(map[string]int),
		Modes:     make(map[string]int),
	}

	resultsChan := make(chan placement, targetOrders)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			placeOrdersHTTP(workerID, targetOrders/numWorkers, simClient, resultsChan)
		}(i)
	}

	// Wait for all orders to be placed
	wg.Wait()
	close(resultsChan)

	for p := range resultsChan {
		stats.PlacedOrders++
		stats.Symbols[p.req.Name]++
		stats.Modes[p.req.Mode]++

		if p.err != nil {
			stats.RejectedOrders++
			continue
		}
		stats.ExecutedOrders++
		stats.TotalValue += float64(p.req.Qty) * p.req.Price
	}

	log.Info().Int("orders_placed", stats.PlacedOrders).Msg("All orders placed")

	// Fetch the final account state
	finalFunds, err := simClient.getFunds()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch funds")
	}
	holdings, err := simClient.getHoldings()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch holdings")
	}
	positions, err := simClient.getPositions()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch positions")
	}
	orderBook, err := simClient.getOrderBook()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch order book")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Order Statistics
------------------
Orders Placed:    %d
Executed:         %d
Rejected:         %d
Traded Value:     ₹%.2f
Duration:         %v

📈 Symbol Distribution
--------------------
`, stats.PlacedOrders, stats.ExecutedOrders, stats.RejectedOrders,
		stats.TotalValue, duration.Round(time.Millisecond))

	// Print symbol distribution with simple ASCII bar chart
	maxSymbolCount := 0
	for _, count := range stats.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}

	for symbol, count := range stats.Symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-8s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\n📉 Mode Distribution")
	fmt.Println("------------------")
	for mode, count := range stats.Modes {
		barLength := int(float64(count) / float64(stats.PlacedOrders) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-4s: %s (%d)\n", mode, bar, count)
	}

	fmt.Println("\n💼 Final Account State")
	fmt.Println("--------------------")
	if finalFunds != nil {
		fmt.Printf("Available Funds:  ₹%.2f\nUsed Funds:       ₹%.2f\n",
			finalFunds.AvailableFunds, finalFunds.UsedFunds)
	}
	fmt.Printf("Holdings:         %d\nPositions:        %d\n", len(holdings), len(positions))
	if orderBook != nil {
		fmt.Printf("Open Orders:      %d\nExecuted Orders:  %d\n",
			len(orderBook.Open), len(orderBook.Executed))
	}
	for _, h := range holdings {
		fmt.Printf("  %-8s qty=%-4d avg=%-9.2f price=%-9.2f net=%s\n",
			h.Name, h.Qty, h.Avg, h.Price, h.Net)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	executionRate := float64(stats.ExecutedOrders) / float64(stats.PlacedOrders) * 100
	log.Info().
		Float64("execution_rate", executionRate).
		Int("orders_placed", stats.PlacedOrders).
		Int("orders_executed", stats.ExecutedOrders).
		Float64("traded_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// placement records one order attempt and its outcome
type placement struct {
	req  types.PlaceOrderRequest
	resp *types.PlaceOrderResponse
	err  error
}

// placeOrdersHTTP generates and submits random orders to the API.
// Runs as a worker goroutine, sending each placement outcome to resultsChan.
// Sells against an empty book are expected to come back rejected.
func placeOrdersHTTP(workerID, numOrders int, simClient *simulationClient, resultsChan chan<- placement) {
	symbols := make([]string, 0, len(basePrices))
	for s := range basePrices {
		symbols = append(symbols, s)
	}

	for i := 0; i < numOrders; i++ {
		symbol := symbols[rand.Intn(len(symbols))]

		// Jitter the reference price by up to ±2%
		price := basePrices[symbol] * (1 + (rand.Float64()-0.5)*0.04)
		price = math.Round(price*100) / 100

		req := types.PlaceOrderRequest{
			UserID: simClient.userID,
			Name:   symbol,
			Qty:    rand.Intn(10) + 1,
			Price:  price,
			Mode:   modes[rand.Intn(len(modes))],
		}

		resp, err := simClient.placeOrder(req)
		if err != nil {
			log.Warn().Err(err).
				Int("worker_id", workerID).
				Str("symbol", req.Name).
				Str("mode", req.Mode).
				Msg("Order not executed")
		} else {
			log.Info().
				Int("worker_id", workerID).
				Str("order_id", resp.Order.OrderID).
				Str("symbol", req.Name).
				Str("mode", req.Mode).
				Int("qty", req.Qty).
				Float64("price", req.Price).
				Msg("Order executed")
		}

		resultsChan <- placement{req: req, resp: resp, err: err}

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the trading API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(db, jwtSecret)
	fundsService := funds.NewService(db)
	portfolioService := portfolio.NewService(db)
	ordersService := orders.NewService(db)
	marketService := market.NewService(db, nil)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	fundsHandlers := funds.NewGinHandlers(fundsService)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)
	ordersHandlers := orders.NewGinHandlers(ordersService)
	marketHandlers := market.NewGinHandlers(marketService)

	// Setup routes
	setupRoutes(router, authHandlers, fundsHandlers, portfolioHandlers, ordersHandlers, marketHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
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
