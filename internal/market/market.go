// Package market serves instrument prices: system-wide price updates that
// re-mark every holding and position, quote lookups with an optional redis
// cache, and the dashboard watchlist.
package market

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stocksim/stocksim-api/internal/types"
	"github.com/stocksim/stocksim-api/pkg/response"
	"gorm.io/gorm"
)

var ErrStockNotFound = errors.New("stock not found")

// Service handles price updates, quotes and the watchlist.
type Service struct {
	db    *Database
	cache *QuoteCache
}

// NewService creates a market service. cache may be nil when redis is not
// configured.
func NewService(gormDB *gorm.DB, cache *QuoteCache) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		cache: cache,
	}
}

// PriceUpdateResult reports how many rows a price update touched.
type PriceUpdateResult struct {
	Symbol           string  `json:"symbol"`
	NewPrice         float64 `json:"newPrice"`
	DayChange        string  `json:"dayChange"`
	HoldingsUpdated  int64   `json:"holdingsUpdated"`
	PositionsUpdated int64   `json:"positionsUpdated"`
}

// UpdateStockPrice re-marks every holding and position of the symbol at the
// new price, recomputes net percentages and loss flags, refreshes the
// watchlist row and invalidates the cached quote.
func (s *Service) UpdateStockPrice(ctx context.Context, req types.UpdateStockPriceRequest) (*PriceUpdateResult, error) {
	logger := log.With().
		Str("component", "market").
		Str("symbol", req.Symbol).
		Float64("price", req.Price).
		Logger()

	holdings, positions, err := s.db.ApplyPriceUpdate(req.Symbol, req.Price, req.DayChange)
	if err != nil {
		logger.Error().Err(err).Msg("price update failed")
		return nil, err
	}

	if err := s.cache.InvalidateQuote(ctx, req.Symbol); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate cached quote")
	}

	logger.Info().
		Int64("holdings_updated", holdings).
		Int64("positions_updated", positions).
		Msg("stock price updated")

	return &PriceUpdateResult{
		Symbol:           req.Symbol,
		NewPrice:         req.Price,
		DayChange:        req.DayChange,
		HoldingsUpdated:  holdings,
		PositionsUpdated: positions,
	}, nil
}

// GetQuote returns the latest known price for a symbol, serving from the
// cache when possible.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*types.StockQuote, error) {
	if quote, err := s.cache.GetQuote(ctx, symbol); err == nil && quote != nil {
		return quote, nil
	}

	quote, err := s.db.FindQuote(symbol)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetQuote(ctx, quote); err != nil {
		log.Warn().Err(err).Str("component", "market").Str("symbol", symbol).Msg("failed to cache quote")
	}
	return quote, nil
}

func (s *Service) ListStocks() ([]types.StockQuote, error) {
	return s.db.ListStocks()
}

// CreateDemoHolding creates an unowned holding row so an instrument shows a
// price before anyone trades it. Admin helper.
func (s *Service) CreateDemoHolding(req types.CreateStockHoldingRequest) (*types.Holding, error) {
	isDemo := true
	if req.IsDemo != nil {
		isDemo = *req.IsDemo
	}

	h := &types.Holding{
		Name:      req.Name,
		Qty:       req.Qty,
		Avg:       req.Avg,
		Price:     req.Price,
		Day:       req.Day,
		Net:       req.Net,
		IsDemo:    isDemo,
		UpdatedAt: time.Now(),
	}
	if h.Avg == 0 {
		h.Avg = req.Price
	}
	if h.Day == "" {
		h.Day = "+0.00%"
	}
	if h.Net == "" {
		h.Net = "0.00%"
	}

	if err := s.db.CreateHolding(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Watchlist returns the dashboard rows overlaid with the latest prices
// known to holdings and positions.
func (s *Service) Watchlist() ([]types.WatchlistItem, error) {
	items, err := s.db.GetWatchlist()
	if err != nil {
		return nil, err
	}

	stocks, err := s.db.ListStocks()
	if err != nil {
		// Serve the stored rows when the overlay cannot be built.
		log.Warn().Err(err).Str("component", "market").Msg("failed to overlay watchlist prices")
		return items, nil
	}

	latest := make(map[string]types.StockQuote, len(stocks))
	for _, q := range stocks {
		latest[q.Symbol] = q
	}

	for i := range items {
		q, ok := latest[items[i].Name]
		if !ok {
			continue
		}
		items[i].Price = q.Price
		if q.DayChange != "" {
			items[i].Percent = q.DayChange
			items[i].IsDown = strings.HasPrefix(q.DayChange, "-")
		}
		items[i].UpdatedAt = q.UpdatedAt
	}
	return items, nil
}

// RealtimeWatchlist is Watchlist with a snapshot timestamp for polling
// clients.
func (s *Service) RealtimeWatchlist() (*types.WatchlistSnapshot, error) {
	items, err := s.Watchlist()
	if err != nil {
		return nil, err
	}
	return &types.WatchlistSnapshot{
		Data:      items,
		Timestamp: time.Now(),
	}, nil
}

// UpdateWatchlistItem refreshes one stored watchlist row directly.
func (s *Service) UpdateWatchlistItem(symbol string, price float64, dayChange string) error {
	return s.db.UpsertWatchlistItem(symbol, price, dayChange)
}

// Refresher periodically persists the overlaid watchlist rows so the stored
// dashboard data converges with the trade book even without price updates.
type Refresher struct {
	service  *Service
	interval time.Duration
}

func NewRefresher(service *Service) *Refresher {
	return &Refresher{
		service:  service,
		interval: time.Minute,
	}
}

// Start begins the refresh loop and blocks until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	logger := log.With().Str("component", "watchlist_refresher").Logger()
	logger.Info().Msg("starting watchlist refresher")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down watchlist refresher")
			return
		case <-ticker.C:
			items, err := r.service.Watchlist()
			if err != nil {
				logger.Error().Err(err).Msg("failed to refresh watchlist")
				continue
			}
			for _, item := range items {
				if err := r.service.UpdateWatchlistItem(item.Name, item.Price, item.Percent); err != nil {
					logger.Error().Err(err).Str("symbol", item.Name).Msg("failed to persist watchlist row")
				}
			}
		}
	}
}

// GinHandlers contains HTTP handlers for market endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// UpdateStockPriceHandler handles POST /updateStockPrice
func (h *GinHandlers) UpdateStockPriceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.UpdateStockPriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Stock symbol and price are required")
			return
		}

		result, err := h.service.UpdateStockPrice(c.Request.Context(), req)
		if err != nil {
			response.InternalError(c, "Failed to update stock price")
			return
		}
		response.OK(c, gin.H{
			"message":          "Stock price updated successfully",
			"symbol":           result.Symbol,
			"newPrice":         result.NewPrice,
			"dayChange":        result.DayChange,
			"holdingsUpdated":  result.HoldingsUpdated,
			"positionsUpdated": result.PositionsUpdated,
		})
	}
}

// GetStockHandler handles GET /stock/:symbol
func (h *GinHandlers) GetStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Param("symbol")
		if symbol == "" {
			response.BadRequest(c, "Stock symbol is required")
			return
		}

		quote, err := h.service.GetQuote(c.Request.Context(), symbol)
		if errors.Is(err, ErrStockNotFound) {
			response.NotFound(c, "Stock not found")
			return
		}
		response.Handle(c, quote, err)
	}
}

// ListStocksHandler handles GET /api/stocks
func (h *GinHandlers) ListStocksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stocks, err := h.service.ListStocks()
		response.Handle(c, stocks, err)
	}
}

// CreateStockHoldingHandler handles POST /createStockHolding
func (h *GinHandlers) CreateStockHoldingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CreateStockHoldingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Stock name and price are required")
			return
		}

		holding, err := h.service.CreateDemoHolding(req)
		if err != nil {
			response.InternalError(c, "Failed to create stock holding")
			return
		}
		response.Success(c, gin.H{"message": "Stock holding created successfully", "holding": holding})
	}
}

// UpdateLocalDataHandler handles POST /updateLocalData
func (h *GinHandlers) UpdateLocalDataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.UpdateStockPriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Stock symbol and price are required")
			return
		}

		if err := h.service.UpdateWatchlistItem(req.Symbol, req.Price, req.DayChange); err != nil {
			response.InternalError(c, "Failed to update local data")
			return
		}
		response.OK(c, gin.H{
			"message":   "Local data updated successfully",
			"symbol":    req.Symbol,
			"newPrice":  req.Price,
			"dayChange": req.DayChange,
		})
	}
}

// WatchlistHandler handles GET /stock/watchlist
func (h *GinHandlers) WatchlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.service.Watchlist()
		response.Handle(c, items, err)
	}
}

// RealtimeWatchlistHandler handles GET /api/watchlist/realtime
func (h *GinHandlers) RealtimeWatchlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := h.service.RealtimeWatchlist()
		response.Handle(c, snapshot, err)
	}
}
