package types

import (
	"time"

	"gorm.io/gorm"
)

// Order modes.
const (
	ModeBuy  = "BUY"
	ModeSell = "SELL"
)

// Order statuses.
const (
	StatusOpen     = "open"
	StatusExecuted = "executed"
	StatusRejected = "rejected"
)

// DefaultProduct is the product an order is booked under when none is given.
const DefaultProduct = "CNC"

// Opening balance granted to every new account.
const (
	DefaultAvailableFunds = 100000
	DefaultUsedFunds      = 0
	DefaultTotalFunds     = 100000
)

type User struct {
	gorm.Model    `json:"-"`
	UserID        string    `gorm:"uniqueIndex" json:"id"`
	Username      string    `json:"username"`
	Email         string    `gorm:"uniqueIndex" json:"email"`
	Password      string    `json:"-"`
	PhoneNumber   string    `json:"phoneNumber,omitempty"`
	PhoneVerified bool      `json:"phoneVerified"`
	ExternalID    string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Funds is the per-user virtual cash ledger. TotalFunds is an
// opening-balance snapshot and is never recomputed from the other two.
type Funds struct {
	gorm.Model     `json:"-"`
	UserID         string    `gorm:"uniqueIndex" json:"userId"`
	AvailableFunds float64   `json:"availableFunds"`
	UsedFunds      float64   `json:"usedFunds"`
	TotalFunds     float64   `json:"totalFunds"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Holding is a user's aggregate position in one instrument across products,
// carried at blended average cost. Deleted once qty reaches zero.
type Holding struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"index:idx_holdings_user_name" json:"userId"`
	Name       string    `gorm:"index:idx_holdings_user_name" json:"name"`
	Qty        int       `json:"qty"`
	Avg        float64   `json:"avg"`
	Price      float64   `json:"price"`
	Net        string    `json:"net"`
	Day        string    `json:"day"`
	IsLoss     bool      `json:"isLoss"`
	IsDemo     bool      `json:"isDemo"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Position is like Holding but scoped to one trading product, so a user may
// carry the same instrument under CNC, MIS and NRML independently.
type Position struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"index:idx_positions_user_name_product" json:"userId"`
	Name       string    `gorm:"index:idx_positions_user_name_product" json:"name"`
	Product    string    `gorm:"index:idx_positions_user_name_product" json:"product"`
	Qty        int       `json:"qty"`
	Avg        float64   `json:"avg"`
	Price      float64   `json:"price"`
	Net        string    `json:"net"`
	Day        string    `json:"day"`
	IsLoss     bool      `json:"isLoss"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Order is an immutable log entry of a trade intent. Rejected placements are
// recorded with StatusRejected and the reason instead of being dropped.
type Order struct {
	gorm.Model `json:"-"`
	OrderID    string     `gorm:"uniqueIndex" json:"orderId"`
	UserID     string     `gorm:"index" json:"userId"`
	Name       string     `json:"name"`
	Qty        int        `json:"qty"`
	Price      float64    `json:"price"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	ExecutedAt *time.Time `json:"executedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// WatchlistItem is a dashboard row for one instrument. Rows are seeded by
// migration and refreshed from holdings/positions as prices move.
type WatchlistItem struct {
	gorm.Model `json:"-"`
	Name       string    `gorm:"uniqueIndex" json:"name"`
	Price      float64   `json:"price"`
	Percent    string    `json:"percent"`
	IsDown     bool      `json:"isDown"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
