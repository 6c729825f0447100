package market

import (
	"errors"
	"strings"
	"time"

	"github.com/stocksim/stocksim-api/internal/portfolio"
	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ApplyPriceUpdate stamps the new market price and day change on every
// holding and position of the symbol, then recomputes each row's net
// percentage against its unchanged average cost. Runs as one transaction.
func (d *Database) ApplyPriceUpdate(symbol string, price float64, dayChange string) (holdingsUpdated, positionsUpdated int64, err error) {
	err = d.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&types.Holding{}).Where("name = ?", symbol).Updates(map[string]interface{}{
			"price":      price,
			"day":        dayChange,
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		holdingsUpdated = res.RowsAffected

		res = tx.Model(&types.Position{}).Where("name = ?", symbol).Updates(map[string]interface{}{
			"price":      price,
			"day":        dayChange,
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		positionsUpdated = res.RowsAffected

		var holdings []types.Holding
		if err := tx.Where("name = ?", symbol).Find(&holdings).Error; err != nil {
			return err
		}
		for i := range holdings {
			pct := portfolio.NetPercent(price, holdings[i].Avg)
			holdings[i].Net = portfolio.FormatSignedNet(pct)
			holdings[i].IsLoss = pct < 0
			if err := tx.Save(&holdings[i]).Error; err != nil {
				return err
			}
		}

		var positions []types.Position
		if err := tx.Where("name = ?", symbol).Find(&positions).Error; err != nil {
			return err
		}
		for i := range positions {
			pct := portfolio.NetPercent(price, positions[i].Avg)
			positions[i].Net = portfolio.FormatSignedNet(pct)
			positions[i].IsLoss = pct < 0
			if err := tx.Save(&positions[i]).Error; err != nil {
				return err
			}
		}

		return d.upsertWatchlistTx(tx, symbol, price, dayChange)
	})
	return holdingsUpdated, positionsUpdated, err
}

// FindQuote resolves the latest known price for a symbol from holdings
// first, then positions.
func (d *Database) FindQuote(symbol string) (*types.StockQuote, error) {
	var h types.Holding
	err := d.db.Where("name = ?", symbol).First(&h).Error
	if err == nil {
		return &types.StockQuote{
			Symbol:    h.Name,
			Name:      h.Name,
			Price:     h.Price,
			DayChange: dayOrDefault(h.Day),
			UpdatedAt: h.UpdatedAt,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var p types.Position
	err = d.db.Where("name = ?", symbol).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &types.StockQuote{
		Symbol:    p.Name,
		Name:      p.Name,
		Price:     p.Price,
		DayChange: dayOrDefault(p.Day),
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// ListStocks returns one quote per distinct instrument across holdings and
// positions, holdings taking precedence.
func (d *Database) ListStocks() ([]types.StockQuote, error) {
	var holdings []types.Holding
	if err := d.db.Find(&holdings).Error; err != nil {
		return nil, err
	}
	var positions []types.Position
	if err := d.db.Find(&positions).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var stocks []types.StockQuote
	for _, h := range holdings {
		if seen[h.Name] {
			continue
		}
		seen[h.Name] = true
		stocks = append(stocks, types.StockQuote{
			Symbol:    h.Name,
			Name:      h.Name,
			Price:     h.Price,
			DayChange: dayOrDefault(h.Day),
			UpdatedAt: h.UpdatedAt,
		})
	}
	for _, p := range positions {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		stocks = append(stocks, types.StockQuote{
			Symbol:    p.Name,
			Name:      p.Name,
			Price:     p.Price,
			DayChange: dayOrDefault(p.Day),
			UpdatedAt: p.UpdatedAt,
		})
	}
	return stocks, nil
}

func (d *Database) CreateHolding(h *types.Holding) error {
	return d.db.Create(h).Error
}

func (d *Database) GetWatchlist() ([]types.WatchlistItem, error) {
	var items []types.WatchlistItem
	if err := d.db.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpsertWatchlistItem refreshes one watchlist row, creating it on first
// sight of the symbol.
func (d *Database) UpsertWatchlistItem(symbol string, price float64, dayChange string) error {
	return d.upsertWatchlistTx(d.db, symbol, price, dayChange)
}

func (d *Database) upsertWatchlistTx(tx *gorm.DB, symbol string, price float64, dayChange string) error {
	var item types.WatchlistItem
	err := tx.Where("name = ?", symbol).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // only tracked instruments appear on the watchlist
	}
	if err != nil {
		return err
	}

	item.Price = price
	if dayChange != "" {
		item.Percent = dayChange
		item.IsDown = strings.HasPrefix(dayChange, "-")
	}
	item.UpdatedAt = time.Now()
	return tx.Save(&item).Error
}

func dayOrDefault(day string) string {
	if day == "" {
		return "+0.00%"
	}
	return day
}
