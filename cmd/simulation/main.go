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
	"github.com/ksred/wager-api/internal/auth"
	"github.com/ksred/wager-api/internal/betting"
	"github.com/ksred/wager-api/internal/database"
	"github.com/ksred/wager-api/internal/oracle"
	"github.com/ksred/wager-api/internal/settlement"
	"github.com/ksred/wager-api/internal/wallet"
	"github.com/ksred/wager-api/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minBets       = 15
	maxBets       = 100
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
)

var (
	symbols    = []string{"BTC", "ETH", "ADA", "DOGE", "LINK"}
	directions = []string{"up", "down"}
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

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the betting API on
// behalf of one simulated user
type simulationClient struct {
	baseURL   string
	userID    int64
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	statsMu   *sync.Mutex
}

// newSimulationClient authenticates a simulated user against the API
// Stats are shared across all clients.
func newSimulationClient(userID int64, stats map[string]*routeStats, statsMu *sync.Mutex) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		userID:  userID,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats:   stats,
		statsMu: statsMu,
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("auth", start, failed) }()

	credentials := auth.Credentials{
		APIKey:    auth.TestAPIKey,
		APISecret: auth.TestAPISecret,
		UserID:    sc.userID,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		failed = true
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON issues an authenticated request and decodes the envelope's data
// field into out
func (sc *simulationClient) doJSON(method, path string, payload, out interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w, body: %s", err, string(respBody))
		}
	}

	return nil
}

// claimBonus claims the daily bonus for the simulated user
func (sc *simulationClient) claimBonus() (*wallet.BonusResult, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("bonus", start, failed) }()

	var result wallet.BonusResult
	if err := sc.doJSON("POST", "/api/v1/bonus", nil, &result); err != nil {
		failed = true
		return nil, err
	}
	return &result, nil
}

// placeBet submits a random bet for the simulated user
func (sc *simulationClient) placeBet(req *betting.PlaceBetRequest) (*betting.PlaceBetResponse, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("bet", start, failed) }()

	var result betting.PlaceBetResponse
	if err := sc.doJSON("POST", "/api/v1/bets", req, &result); err != nil {
		failed = true
		return nil, err
	}
	if result.BetID == "" {
		failed = true
		return nil, fmt.Errorf("no bet ID in response")
	}
	return &result, nil
}

// getBalance fetches the simulated user's balance summary
func (sc *simulationClient) getBalance() (*wallet.BalanceSummary, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("balance", start, failed) }()

	var result wallet.BalanceSummary
	if err := sc.doJSON("GET", "/api/v1/balance", nil, &result); err != nil {
		failed = true
		return nil, err
	}
	return &result, nil
}

// listBets fetches the simulated user's pending bets
func (sc *simulationClient) listBets() ([]betting.Bet, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("list", start, failed) }()

	var result []betting.Bet
	if err := sc.doJSON("GET", "/api/v1/bets?status=pending&limit=50", nil, &result); err != nil {
		failed = true
		return nil, err
	}
	return result, nil
}

// getLeaderboard fetches the top balances
func (sc *simulationClient) getLeaderboard() ([]wallet.BalanceSummary, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("leaderboard", start, failed) }()

	var result []wallet.BalanceSummary
	if err := sc.doJSON("GET", "/api/v1/leaderboard?limit=10", nil, &result); err != nil {
		failed = true
		return nil, err
	}
	return result, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, rs := range stats {
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			rs.name,
			rs.totalCalls,
			rs.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the betting simulation
// It starts a local API server and simulates multiple concurrent bettors
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	stats := map[string]*routeStats{
		"auth":        {name: "Authentication"},
		"bonus":       {name: "Claim Bonus"},
		"bet":         {name: "Place Bet"},
		"balance":     {name: "Get Balance"},
		"list":        {name: "List Bets"},
		"leaderboard": {name: "Leaderboard"},
	}
	var statsMu sync.Mutex

	targetBets := rand.Intn(maxBets-minBets) + minBets
	log.Info().Int("target_bets", targetBets).Msg("Starting simulation")

	summary := struct {
		TotalBets   int
		FailedBets  int
		TotalStaked float64
		StartTime   time.Time
		Symbols     map[string]int
		Directions  map[string]int
		mu          sync.Mutex
	}{
		StartTime:  time.Now(),
		Symbols:    make(map[string]int),
		Directions: make(map[string]int),
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			userID := int64(1000 + workerID)
			simClient, err := newSimulationClient(userID, stats, &statsMu)
			if err != nil {
				log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to initialize simulation client")
				return
			}

			if bonus, err := simClient.claimBonus(); err == nil && bonus.Granted {
				log.Info().Int64("user_id", userID).Float64("amount", bonus.Amount).Msg("Bonus claimed")
			}

			for j := 0; j < targetBets/numWorkers; j++ {
				req := &betting.PlaceBetRequest{
					Symbol:          symbols[rand.Intn(len(symbols))],
					Direction:       directions[rand.Intn(len(directions))],
					Stake:           float64(rand.Intn(50) + 5),
					DurationMinutes: []int{15, 30, 60, 240}[rand.Intn(4)],
				}

				bet, err := simClient.placeBet(req)
				if err != nil {
					log.Error().Err(err).
						Int("worker_id", workerID).
						Str("symbol", req.Symbol).
						Msg("Failed to place bet")
					summary.mu.Lock()
					summary.FailedBets++
					summary.mu.Unlock()
					continue
				}

				summary.mu.Lock()
				summary.TotalBets++
				summary.TotalStaked += bet.Stake
				summary.Symbols[bet.Symbol]++
				summary.Directions[bet.Direction]++
				summary.mu.Unlock()

				log.Info().
					Int("worker_id", workerID).
					Str("bet_id", bet.BetID).
					Str("symbol", bet.Symbol).
					Str("direction", bet.Direction).
					Float64("stake", bet.Stake).
					Float64("potential_payout", bet.PotentialPayout).
					Msg("Bet placed")

				// Random sleep between bets
				time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
			}

			if balance, err := simClient.getBalance(); err == nil {
				log.Info().
					Int64("user_id", userID).
					Float64("amount", balance.Amount).
					Float64("total_wagered", balance.TotalWagered).
					Msg("Final balance")
			}

			if bets, err := simClient.listBets(); err == nil {
				log.Info().Int64("user_id", userID).Int("pending_bets", len(bets)).Msg("Pending bets")
			}

			if board, err := simClient.getLeaderboard(); err == nil && len(board) > 0 {
				log.Info().
					Int64("top_user", board[0].UserID).
					Float64("top_amount", board[0].Amount).
					Msg("Leaderboard fetched")
			}
		}(i)
	}

	wg.Wait()

	// Print summary
	duration := time.Since(summary.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🎲 BETTING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Bet Statistics
-----------------
Placed Bets:   %d
Failed Bets:   %d
Total Staked:  $%.2f
Duration:      %v

📈 Symbol Distribution
--------------------
`, summary.TotalBets, summary.FailedBets, summary.TotalStaked, duration.Round(time.Millisecond))

	maxSymbolCount := 0
	for _, count := range summary.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}

	for symbol, count := range summary.Symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\n📉 Direction Distribution")
	fmt.Println("------------------")
	for direction, count := range summary.Directions {
		barLength := int(float64(count) / float64(summary.TotalBets) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-5s: %s (%d)\n", direction, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("placed_bets", summary.TotalBets).
		Int("failed_bets", summary.FailedBets).
		Float64("total_staked", summary.TotalStaked).
		Dur("duration", duration).
		Msg("Simulation completed")

	printPerformanceStats(stats)
}

// startServer initializes and starts the betting API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("wager-secret-key")
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	priceOracle := oracle.NewOracle(oracle.NewDatabase(db), nil, time.Now().UnixNano())
	walletService := wallet.NewService(db)
	bettingService := betting.NewService(db, priceOracle)
	settlementService := settlement.NewService(db, priceOracle)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	oracleHandlers := oracle.NewGinHandlers(priceOracle)
	walletHandlers := wallet.NewGinHandlers(walletService)
	bettingHandlers := betting.NewGinHandlers(bettingService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Setup routes
	setupRoutes(router, "wager-secret-key", authHandlers, oracleHandlers, walletHandlers, bettingHandlers, settlementHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
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

		// Public routes
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

		// Internal routes
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/settlement/:bet_id", settlementHandlers.ResolveBetHandler())
		}
	}
}
