// Package funds debits and credits the per-user virtual cash ledger.
package funds

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stocksim/stocksim-api/internal/types"
	"github.com/stocksim/stocksim-api/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrFundsNotFound     = errors.New("user funds not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Debit reserves amount for a buy: available funds must cover it, the
// reserved amount moves into used funds. The caller supplies the
// transaction the whole placement runs in.
func Debit(tx *gorm.DB, userID string, amount float64) (*types.Funds, error) {
	f, err := Get(tx, userID)
	if err != nil {
		return nil, err
	}

	if f.AvailableFunds < amount {
		return nil, ErrInsufficientFunds
	}

	f.AvailableFunds -= amount
	f.UsedFunds += amount
	f.UpdatedAt = time.Now()

	if err := tx.Save(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// Credit releases amount after a sell. There is deliberately no exposure
// check on the sell side; used funds simply floor at zero.
func Credit(tx *gorm.DB, userID string, amount float64) (*types.Funds, error) {
	f, err := Get(tx, userID)
	if err != nil {
		return nil, err
	}

	f.AvailableFunds += amount
	f.UsedFunds -= amount
	if f.UsedFunds < 0 {
		f.UsedFunds = 0
	}
	f.UpdatedAt = time.Now()

	if err := tx.Save(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// CreateInitial seeds the opening balance for a new user.
func CreateInitial(tx *gorm.DB, userID string) (*types.Funds, error) {
	f := &types.Funds{
		UserID:         userID,
		AvailableFunds: types.DefaultAvailableFunds,
		UsedFunds:      types.DefaultUsedFunds,
		TotalFunds:     types.DefaultTotalFunds,
		UpdatedAt:      time.Now(),
	}
	if err := tx.Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// Service exposes funds lookups and test-account creation.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

func (s *Service) GetByUser(userID string) (*types.Funds, error) {
	return s.db.GetByUser(userID)
}

// CreateTestFunds creates a funds record with explicit balances, refusing
// to overwrite an existing one. Development helper.
func (s *Service) CreateTestFunds(req types.CreateFundsRequest) (*types.Funds, error) {
	if _, err := s.db.GetByUser(req.UserID); err == nil {
		return nil, gorm.ErrDuplicatedKey
	} else if !errors.Is(err, ErrFundsNotFound) {
		return nil, err
	}

	f := &types.Funds{
		UserID:         req.UserID,
		AvailableFunds: req.AvailableFunds,
		UsedFunds:      req.UsedFunds,
		TotalFunds:     req.TotalFunds,
		UpdatedAt:      time.Now(),
	}
	if f.AvailableFunds == 0 {
		f.AvailableFunds = types.DefaultAvailableFunds
	}
	if f.TotalFunds == 0 {
		f.TotalFunds = types.DefaultTotalFunds
	}

	if err := s.db.Create(f); err != nil {
		return nil, err
	}
	return f, nil
}

// GinHandlers contains HTTP handlers for funds endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// GetUserFundsHandler handles GET /user/:userId/funds
func (h *GinHandlers) GetUserFundsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		f, err := h.service.GetByUser(userID)
		if errors.Is(err, ErrFundsNotFound) {
			response.NotFound(c, "Funds not found for this user")
			return
		}
		response.Handle(c, f, err)
	}
}

// CreateTestFundsHandler handles POST /createTestFunds
func (h *GinHandlers) CreateTestFundsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CreateFundsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		f, err := h.service.CreateTestFunds(req)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			response.BadRequest(c, "Funds already exist for this user")
			return
		}
		response.Handle(c, f, err)
	}
}
