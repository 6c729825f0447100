package market

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stocksim/stocksim-api/internal/database"
	"github.com/stocksim/stocksim-api/internal/portfolio"
	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.NewTestDatabase(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// No redis in tests, the cache degrades to a no-op.
	return NewService(db, nil), db
}

// TestUpdateStockPrice checks a price update re-marks every row of the
// symbol: price and day change stamped, net recomputed against the unchanged
// average, loss flag set from the sign.
func TestUpdateStockPrice(t *testing.T) {
	service, db := newTestService(t)

	if _, err := portfolio.ApplyBuyHolding(db, "user-1", "INFY", 10, 1500); err != nil {
		t.Fatalf("seed holding failed: %v", err)
	}
	if _, err := portfolio.ApplyBuyPosition(db, "user-2", "INFY", "CNC", 5, 1600); err != nil {
		t.Fatalf("seed position failed: %v", err)
	}

	result, err := service.UpdateStockPrice(context.Background(), types.UpdateStockPriceRequest{
		Symbol:    "INFY",
		Price:     1650,
		DayChange: "+1.20%",
	})
	if err != nil {
		t.Fatalf("UpdateStockPrice failed: %v", err)
	}
	if result.HoldingsUpdated != 1 || result.PositionsUpdated != 1 {
		t.Errorf("updated %d holdings / %d positions, want 1/1",
			result.HoldingsUpdated, result.PositionsUpdated)
	}

	var h types.Holding
	if err := db.Where("name = ?", "INFY").First(&h).Error; err != nil {
		t.Fatalf("holding lookup failed: %v", err)
	}
	if h.Price != 1650 {
		t.Errorf("holding price = %v, want 1650", h.Price)
	}
	if h.Avg != 1500 {
		t.Errorf("price update changed avg to %v", h.Avg)
	}
	if h.Net != "+10.00%" {
		t.Errorf("holding net = %q, want +10.00%%", h.Net)
	}
	if h.IsLoss {
		t.Error("holding flagged as loss on a gain")
	}
	if h.Day != "+1.20%" {
		t.Errorf("holding day = %q, want +1.20%%", h.Day)
	}
}

func TestUpdateStockPriceFlagsLoss(t *testing.T) {
	service, db := newTestService(t)

	if _, err := portfolio.ApplyBuyHolding(db, "user-1", "TCS", 4, 3000); err != nil {
		t.Fatalf("seed holding failed: %v", err)
	}

	if _, err := service.UpdateStockPrice(context.Background(), types.UpdateStockPriceRequest{
		Symbol:    "TCS",
		Price:     2700,
		DayChange: "-2.40%",
	}); err != nil {
		t.Fatalf("UpdateStockPrice failed: %v", err)
	}

	var h types.Holding
	if err := db.Where("name = ?", "TCS").First(&h).Error; err != nil {
		t.Fatalf("holding lookup failed: %v", err)
	}
	if h.Net != "-10.00%" {
		t.Errorf("holding net = %q, want -10.00%%", h.Net)
	}
	if !h.IsLoss {
		t.Error("holding not flagged as loss")
	}
}

func TestGetQuote(t *testing.T) {
	service, db := newTestService(t)

	if _, err := portfolio.ApplyBuyHolding(db, "user-1", "SBIN", 10, 430); err != nil {
		t.Fatalf("seed holding failed: %v", err)
	}

	quote, err := service.GetQuote(context.Background(), "SBIN")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Symbol != "SBIN" || quote.Price != 430 {
		t.Errorf("quote = %+v, want SBIN at 430", quote)
	}
	// A fresh holding has no day change yet, the quote carries the default.
	if quote.DayChange != "+0.00%" {
		t.Errorf("quote dayChange = %q, want +0.00%%", quote.DayChange)
	}

	if _, err := service.GetQuote(context.Background(), "UNKNOWN"); !errors.Is(err, ErrStockNotFound) {
		t.Errorf("unknown symbol returned %v, want ErrStockNotFound", err)
	}
}

func TestGetQuoteFallsBackToPositions(t *testing.T) {
	service, db := newTestService(t)

	if _, err := portfolio.ApplyBuyPosition(db, "user-1", "HDFCBANK", "MIS", 2, 1520); err != nil {
		t.Fatalf("seed position failed: %v", err)
	}

	quote, err := service.GetQuote(context.Background(), "HDFCBANK")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Price != 1520 {
		t.Errorf("quote price = %v, want 1520", quote.Price)
	}
}

func TestListStocksDeduplicates(t *testing.T) {
	service, db := newTestService(t)

	if _, err := portfolio.ApplyBuyHolding(db, "user-1", "INFY", 10, 1500); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := portfolio.ApplyBuyHolding(db, "user-2", "INFY", 5, 1520); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := portfolio.ApplyBuyPosition(db, "user-1", "TCS", "CNC", 2, 3000); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	stocks, err := service.ListStocks()
	if err != nil {
		t.Fatalf("ListStocks failed: %v", err)
	}
	if len(stocks) != 2 {
		t.Fatalf("got %d stocks, want 2: %+v", len(stocks), stocks)
	}
}

func TestCreateDemoHolding(t *testing.T) {
	service, _ := newTestService(t)

	h, err := service.CreateDemoHolding(types.CreateStockHoldingRequest{
		Name:  "WIPRO",
		Price: 577.75,
	})
	if err != nil {
		t.Fatalf("CreateDemoHolding failed: %v", err)
	}
	if !h.IsDemo {
		t.Error("demo holding not flagged")
	}
	if h.Avg != 577.75 {
		t.Errorf("avg = %v, want the price when no avg is given", h.Avg)
	}
	if h.Net != "0.00%" || h.Day != "+0.00%" {
		t.Errorf("defaults not applied: net=%q day=%q", h.Net, h.Day)
	}
}

// TestWatchlistOverlay checks that seeded watchlist rows are overlaid with
// the latest traded prices, while untraded rows keep their seeded values.
func TestWatchlistOverlay(t *testing.T) {
	service, db := newTestService(t)

	items, err := service.Watchlist()
	if err != nil {
		t.Fatalf("Watchlist failed: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("seeded watchlist is empty")
	}

	var seeded *types.WatchlistItem
	for i := range items {
		if items[i].Name == "INFY" {
			seeded = &items[i]
			break
		}
	}
	if seeded == nil {
		t.Fatal("INFY missing from seeded watchlist")
	}

	if _, err := portfolio.ApplyBuyHolding(db, "user-1", "INFY", 10, 1500); err != nil {
		t.Fatalf("seed holding failed: %v", err)
	}
	if _, err := service.UpdateStockPrice(context.Background(), types.UpdateStockPriceRequest{
		Symbol:    "INFY",
		Price:     1611.40,
		DayChange: "-0.60%",
	}); err != nil {
		t.Fatalf("UpdateStockPrice failed: %v", err)
	}

	items, err = service.Watchlist()
	if err != nil {
		t.Fatalf("Watchlist failed: %v", err)
	}
	for _, item := range items {
		if item.Name != "INFY" {
			continue
		}
		if item.Price != 1611.40 {
			t.Errorf("overlay price = %v, want 1611.40", item.Price)
		}
		if item.Percent != "-0.60%" {
			t.Errorf("overlay percent = %q, want -0.60%%", item.Percent)
		}
		if !item.IsDown {
			t.Error("negative day change not flagged as down")
		}
	}
}

func TestRealtimeWatchlist(t *testing.T) {
	service, _ := newTestService(t)

	snapshot, err := service.RealtimeWatchlist()
	if err != nil {
		t.Fatalf("RealtimeWatchlist failed: %v", err)
	}
	if snapshot.Timestamp.IsZero() {
		t.Error("snapshot has no timestamp")
	}
	if len(snapshot.Data) == 0 {
		t.Error("snapshot has no rows")
	}
}

func TestUpdateWatchlistItemIgnoresUnknownSymbol(t *testing.T) {
	service, db := newTestService(t)

	if err := service.UpdateWatchlistItem("NOTLISTED", 100, "+1.00%"); err != nil {
		t.Fatalf("UpdateWatchlistItem failed: %v", err)
	}

	var count int64
	db.Model(&types.WatchlistItem{}).Where("name = ?", "NOTLISTED").Count(&count)
	if count != 0 {
		t.Error("unknown symbol was added to the watchlist")
	}
}
