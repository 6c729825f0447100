package migrations

import (
	"time"

	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

// Default dashboard instruments with their last session close.
var watchlistSeed = []types.WatchlistItem{
	{Name: "NIFTY50", Price: 22567.75, Percent: "+0.53%"},
	{Name: "SENSEX", Price: 74339.44, Percent: "+0.48%"},
	{Name: "INFY", Price: 1555.45, Percent: "-1.60%", IsDown: true},
	{Name: "ONGC", Price: 116.8, Percent: "-0.09%", IsDown: true},
	{Name: "TCS", Price: 3194.8, Percent: "-0.25%", IsDown: true},
	{Name: "KPITTECH", Price: 266.45, Percent: "+3.54%"},
	{Name: "QUICKHEAL", Price: 308.55, Percent: "-0.15%", IsDown: true},
	{Name: "WIPRO", Price: 577.75, Percent: "+0.32%"},
	{Name: "M&M", Price: 779.8, Percent: "-0.01%", IsDown: true},
	{Name: "RELIANCE", Price: 2112.4, Percent: "+1.44%"},
	{Name: "HUL", Price: 512.4, Percent: "+1.04%"},
	{Name: "BHARTIARTL", Price: 541.15, Percent: "+2.99%"},
	{Name: "HDFCBANK", Price: 1522.35, Percent: "+0.11%"},
	{Name: "HINDUNILVR", Price: 2417.4, Percent: "+0.21%"},
	{Name: "ITC", Price: 207.9, Percent: "+0.80%"},
	{Name: "SBIN", Price: 430.2, Percent: "-0.34%", IsDown: true},
	{Name: "TATAPOWER", Price: 124.15, Percent: "-0.24%", IsDown: true},
	{Name: "EVEREADY", Price: 312.35, Percent: "-1.24%", IsDown: true},
	{Name: "JUBLFOOD", Price: 3082.65, Percent: "-1.35%", IsDown: true},
}

// SeedWatchlist creates the watchlist table and fills it with the default
// instruments on first run. Existing rows are left alone.
func SeedWatchlist(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.WatchlistItem{}); err != nil {
		return err
	}

	var count int64
	if err := db.Model(&types.WatchlistItem{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	for i := range watchlistSeed {
		watchlistSeed[i].UpdatedAt = now
	}
	return db.Create(&watchlistSeed).Error
}
