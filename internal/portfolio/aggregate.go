package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

var (
	ErrNoHoldingFound       = errors.New("no holdings found for this stock")
	ErrNoPositionFound      = errors.New("no positions found for this stock")
	ErrInsufficientQuantity = errors.New("insufficient quantity to sell")
)

// NextAverage returns the blended average cost after buying qty units at
// price on top of prevQty units carried at prevAvg. Average cost is only
// ever recomputed on buys; sells leave it untouched.
func NextAverage(prevQty int, prevAvg float64, qty int, price float64) float64 {
	totalQty := prevQty + qty
	totalCost := prevAvg*float64(prevQty) + price*float64(qty)
	return totalCost / float64(totalQty)
}

// NetPercent is the percentage difference between the current price and the
// average cost.
func NetPercent(price, avg float64) float64 {
	return (price - avg) / avg * 100
}

// FormatNet renders a percentage to two decimals with a % suffix. Negative
// values carry their sign, positive ones no prefix.
func FormatNet(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatSignedNet renders a percentage with an explicit sign, the format
// used when prices move and net is recomputed across the book.
func FormatSignedNet(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

// ApplyBuyHolding merges a buy into the user's holding for the instrument,
// creating it on first purchase.
func ApplyBuyHolding(tx *gorm.DB, userID, name string, qty int, price float64) (*types.Holding, error) {
	var h types.Holding
	err := tx.Where("user_id = ? AND name = ?", userID, name).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h = types.Holding{
			UserID: userID,
			Name:   name,
			Qty:    qty,
			Avg:    price,
			Price:  price,
			Net:    "0.00%",
			Day:    "+0.00%",
		}
		if err := tx.Create(&h).Error; err != nil {
			return nil, err
		}
		return &h, nil
	}
	if err != nil {
		return nil, err
	}

	newAvg := NextAverage(h.Qty, h.Avg, qty, price)
	h.Qty += qty
	h.Avg = newAvg
	h.Price = price
	h.Net = FormatNet(NetPercent(price, newAvg))
	h.UpdatedAt = time.Now()

	if err := tx.Save(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// ApplySellHolding reduces the user's holding, deleting it when the full
// quantity is sold. The average cost basis persists across partial sells.
func ApplySellHolding(tx *gorm.DB, userID, name string, qty int, price float64) (*types.Holding, error) {
	var h types.Holding
	err := tx.Where("user_id = ? AND name = ?", userID, name).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoHoldingFound
	}
	if err != nil {
		return nil, err
	}

	if h.Qty < qty {
		return nil, ErrInsufficientQuantity
	}

	remaining := h.Qty - qty
	if remaining == 0 {
		if err := tx.Delete(&h).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	h.Qty = remaining
	h.Price = price
	h.Net = FormatNet(NetPercent(price, h.Avg))
	h.UpdatedAt = time.Now()

	if err := tx.Save(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// ApplyBuyPosition merges a buy into the user's position for the
// (instrument, product) pair, creating it on first purchase.
func ApplyBuyPosition(tx *gorm.DB, userID, name, product string, qty int, price float64) (*types.Position, error) {
	var p types.Position
	err := tx.Where("user_id = ? AND name = ? AND product = ?", userID, name, product).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = types.Position{
			UserID:  userID,
			Name:    name,
			Product: product,
			Qty:     qty,
			Avg:     price,
			Price:   price,
			Net:     "0.00%",
			Day:     "+0.00%",
		}
		if err := tx.Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	if err != nil {
		return nil, err
	}

	newAvg := NextAverage(p.Qty, p.Avg, qty, price)
	p.Qty += qty
	p.Avg = newAvg
	p.Price = price
	p.Net = FormatNet(NetPercent(price, newAvg))
	p.UpdatedAt = time.Now()

	if err := tx.Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplySellPosition reduces the user's position under one product, deleting
// it when the full quantity is sold.
func ApplySellPosition(tx *gorm.DB, userID, name, product string, qty int, price float64) (*types.Position, error) {
	var p types.Position
	err := tx.Where("user_id = ? AND name = ? AND product = ?", userID, name, product).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPositionFound
	}
	if err != nil {
		return nil, err
	}

	if p.Qty < qty {
		return nil, ErrInsufficientQuantity
	}

	remaining := p.Qty - qty
	if remaining == 0 {
		if err := tx.Delete(&p).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	p.Qty = remaining
	p.Price = price
	p.Net = FormatNet(NetPercent(price, p.Avg))
	p.UpdatedAt = time.Now()

	if err := tx.Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
