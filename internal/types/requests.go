package types

// PlaceOrderRequest is the body of POST /placeOrder.
type PlaceOrderRequest struct {
	UserID             string  `json:"userId" binding:"required"`
	Name               string  `json:"name" binding:"required"`
	Qty                int     `json:"qty" binding:"required,gt=0"`
	Price              float64 `json:"price" binding:"required,gt=0"`
	Mode               string  `json:"mode" binding:"required,oneof=BUY SELL"`
	Product            string  `json:"product"`
	ExecuteImmediately *bool   `json:"executeImmediately"`
}

// ProductOrDefault returns the requested product, defaulting to CNC.
func (r PlaceOrderRequest) ProductOrDefault() string {
	if r.Product == "" {
		return DefaultProduct
	}
	return r.Product
}

// Immediate reports whether the order should execute on placement.
// Unset means immediate, matching the original API default.
func (r PlaceOrderRequest) Immediate() bool {
	return r.ExecuteImmediately == nil || *r.ExecuteImmediately
}

// NewOrderRequest is the body of POST /newOrder, the bare order recorder.
type NewOrderRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Name   string  `json:"name" binding:"required"`
	Qty    int     `json:"qty" binding:"required,gt=0"`
	Price  float64 `json:"price" binding:"required,gt=0"`
	Mode   string  `json:"mode" binding:"required,oneof=BUY SELL"`
}

// AddHoldingRequest is the body of POST /user/:userId/holdings.
type AddHoldingRequest struct {
	Name   string  `json:"name" binding:"required"`
	Qty    int     `json:"qty" binding:"required,gt=0"`
	Avg    float64 `json:"avg" binding:"required,gt=0"`
	Price  float64 `json:"price" binding:"required,gt=0"`
	Net    string  `json:"net"`
	Day    string  `json:"day"`
	IsLoss bool    `json:"isLoss"`
}

// AddPositionRequest is the body of POST /user/:userId/positions.
type AddPositionRequest struct {
	Product string  `json:"product" binding:"required"`
	Name    string  `json:"name" binding:"required"`
	Qty     int     `json:"qty" binding:"required,gt=0"`
	Avg     float64 `json:"avg" binding:"required,gt=0"`
	Price   float64 `json:"price" binding:"required,gt=0"`
	Net     string  `json:"net"`
	Day     string  `json:"day"`
	IsLoss  bool    `json:"isLoss"`
}

// CreateFundsRequest is the body of POST /createTestFunds.
type CreateFundsRequest struct {
	UserID         string  `json:"userId" binding:"required"`
	AvailableFunds float64 `json:"availableFunds"`
	UsedFunds      float64 `json:"usedFunds"`
	TotalFunds     float64 `json:"totalFunds"`
}

// UpdateStockPriceRequest is the body of POST /updateStockPrice.
type UpdateStockPriceRequest struct {
	Symbol    string  `json:"symbol" binding:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" binding:"required,gt=0"`
	DayChange string  `json:"dayChange"`
}

// CreateStockHoldingRequest is the body of POST /createStockHolding.
type CreateStockHoldingRequest struct {
	Name   string  `json:"name" binding:"required"`
	Qty    int     `json:"qty"`
	Avg    float64 `json:"avg"`
	Price  float64 `json:"price" binding:"required,gt=0"`
	Day    string  `json:"day"`
	Net    string  `json:"net"`
	IsDemo *bool   `json:"isDemo"`
}
