package types

import "time"

// PlaceOrderResponse is returned by POST /placeOrder on success.
type PlaceOrderResponse struct {
	Message      string `json:"message"`
	Order        *Order `json:"order"`
	UpdatedFunds *Funds `json:"updatedFunds"`
	Status       string `json:"status"`
}

// OrderBook partitions a user's orders by status for the dashboard.
type OrderBook struct {
	Open     []Order `json:"open"`
	Executed []Order `json:"executed"`
}

// StockQuote is the public view of one instrument's latest price.
type StockQuote struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	DayChange string    `json:"dayChange"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WatchlistSnapshot wraps watchlist rows with the time they were taken,
// for clients polling the realtime endpoint.
type WatchlistSnapshot struct {
	Data      []WatchlistItem `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
