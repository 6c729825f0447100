// Package orders records trade intents and orchestrates order placement:
// funds adjustment, holding and position aggregation and the order log,
// applied as one atomic unit per placement.
package orders

import (
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stocksim/stocksim-api/internal/funds"
	"github.com/stocksim/stocksim-api/internal/portfolio"
	"github.com/stocksim/stocksim-api/internal/types"
	"github.com/stocksim/stocksim-api/pkg/response"
	"gorm.io/gorm"
)

// Service places and lists orders.
type Service struct {
	gormDB *gorm.DB
	db     *Database

	// One lock per user serializes placements so concurrent trades cannot
	// read the same pre-update funds or holding rows. Entries are never
	// pruned: dropping a mutex another goroutine is about to acquire would
	// reopen the race, and the cost is a few words per user ever seen.
	locks sync.Map // map[string]*sync.Mutex
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// isBusinessErr reports whether err is a rule rejection rather than a
// persistence failure. Rejections are recorded on the order log.
func isBusinessErr(err error) bool {
	return errors.Is(err, funds.ErrFundsNotFound) ||
		errors.Is(err, funds.ErrInsufficientFunds) ||
		errors.Is(err, portfolio.ErrNoHoldingFound) ||
		errors.Is(err, portfolio.ErrNoPositionFound) ||
		errors.Is(err, portfolio.ErrInsufficientQuantity)
}

// PlaceOrder runs the whole placement in one transaction: the funds debit
// or credit, the holding and position merge when executing immediately, and
// the order record. A failed check rolls everything back; the attempt is
// then logged as a rejected order instead of an orphaned open one.
func (s *Service) PlaceOrder(req types.PlaceOrderRequest) (*types.PlaceOrderResponse, error) {
	mu := s.userLock(req.UserID)
	mu.Lock()
	defer mu.Unlock()

	logger := log.With().
		Str("component", "orders").
		Str("user_id", req.UserID).
		Str("symbol", req.Name).
		Str("mode", req.Mode).
		Logger()

	orderAmount := float64(req.Qty) * req.Price
	immediate := req.Immediate()
	product := req.ProductOrDefault()

	var (
		order        *types.Order
		updatedFunds *types.Funds
	)

	txErr := s.gormDB.Transaction(func(tx *gorm.DB) error {
		// Funds record must exist before anything else is attempted.
		if _, err := funds.Get(tx, req.UserID); err != nil {
			return err
		}

		switch req.Mode {
		case types.ModeBuy:
			// Funds are reserved even when the order stays open.
			f, err := funds.Debit(tx, req.UserID, orderAmount)
			if err != nil {
				return err
			}
			updatedFunds = f

			if immediate {
				if _, err := portfolio.ApplyBuyHolding(tx, req.UserID, req.Name, req.Qty, req.Price); err != nil {
					return err
				}
				if _, err := portfolio.ApplyBuyPosition(tx, req.UserID, req.Name, product, req.Qty, req.Price); err != nil {
					return err
				}
			}

		case types.ModeSell:
			if immediate {
				if _, err := portfolio.ApplySellHolding(tx, req.UserID, req.Name, req.Qty, req.Price); err != nil {
					return err
				}
				if _, err := portfolio.ApplySellPosition(tx, req.UserID, req.Name, product, req.Qty, req.Price); err != nil {
					return err
				}
				f, err := funds.Credit(tx, req.UserID, orderAmount)
				if err != nil {
					return err
				}
				updatedFunds = f
			}
		}

		// An open sell changes nothing but the order log; the funds row
		// still gets a fresh timestamp as part of the placement.
		if updatedFunds == nil {
			f, err := funds.Get(tx, req.UserID)
			if err != nil {
				return err
			}
			f.UpdatedAt = time.Now()
			if err := tx.Save(f).Error; err != nil {
				return err
			}
			updatedFunds = f
		}

		order = &types.Order{
			OrderID:   uuid.New().String(),
			UserID:    req.UserID,
			Name:      req.Name,
			Qty:       req.Qty,
			Price:     req.Price,
			Mode:      req.Mode,
			Status:    types.StatusOpen,
			CreatedAt: time.Now(),
		}
		if immediate {
			now := time.Now()
			order.Status = types.StatusExecuted
			order.ExecutedAt = &now
		}

		return tx.Create(order).Error
	})

	if txErr != nil {
		if isBusinessErr(txErr) {
			s.recordRejection(req, txErr)
			logger.Info().Err(txErr).Msg("order rejected")
		} else {
			logger.Error().Err(txErr).Msg("order placement failed")
		}
		return nil, txErr
	}

	logger.Info().
		Str("order_id", order.OrderID).
		Str("status", order.Status).
		Float64("amount", orderAmount).
		Msg("order placed")

	message := "Order placed successfully"
	if immediate {
		message = "Order executed successfully"
	}

	return &types.PlaceOrderResponse{
		Message:      message,
		Order:        order,
		UpdatedFunds: updatedFunds,
		Status:       order.Status,
	}, nil
}

// recordRejection writes a rejected order after the placement transaction
// rolled back, keeping an audit trail without orphaned open orders.
func (s *Service) recordRejection(req types.PlaceOrderRequest, cause error) {
	rejected := &types.Order{
		OrderID:   uuid.New().String(),
		UserID:    req.UserID,
		Name:      req.Name,
		Qty:       req.Qty,
		Price:     req.Price,
		Mode:      req.Mode,
		Status:    types.StatusRejected,
		Reason:    cause.Error(),
		CreatedAt: time.Now(),
	}
	if err := s.db.CreateOrder(rejected); err != nil {
		log.Error().Err(err).Str("component", "orders").Msg("failed to record rejected order")
	}
}

// RecordOrder appends a bare open order without touching funds or the
// portfolio. Used by the legacy order-entry endpoint.
func (s *Service) RecordOrder(req types.NewOrderRequest) (*types.Order, error) {
	order := &types.Order{
		OrderID:   uuid.New().String(),
		UserID:    req.UserID,
		Name:      req.Name,
		Qty:       req.Qty,
		Price:     req.Price,
		Mode:      req.Mode,
		Status:    types.StatusOpen,
		CreatedAt: time.Now(),
	}
	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetUserOrders returns the user's orders partitioned by status, newest
// first. Rejected attempts stay out of both buckets.
func (s *Service) GetUserOrders(userID string) (*types.OrderBook, error) {
	all, err := s.db.GetUserOrders(userID)
	if err != nil {
		return nil, err
	}

	book := &types.OrderBook{
		Open:     []types.Order{},
		Executed: []types.Order{},
	}
	for _, o := range all {
		switch o.Status {
		case types.StatusOpen:
			book.Open = append(book.Open, o)
		case types.StatusExecuted:
			book.Executed = append(book.Executed, o)
		}
	}
	return book, nil
}

func (s *Service) GetAllOrders() ([]types.Order, error) {
	return s.db.GetAllOrders()
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// PlaceOrderHandler handles POST /placeOrder
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.PlaceOrder(req)
		switch {
		case errors.Is(err, funds.ErrFundsNotFound):
			response.NotFound(c, "User funds not found")
		case errors.Is(err, funds.ErrInsufficientFunds):
			response.BadRequest(c, "Insufficient funds")
		case errors.Is(err, portfolio.ErrNoHoldingFound):
			response.BadRequest(c, "No holdings found for this stock")
		case errors.Is(err, portfolio.ErrNoPositionFound):
			response.BadRequest(c, "No positions found for this stock")
		case errors.Is(err, portfolio.ErrInsufficientQuantity):
			response.BadRequest(c, "Insufficient stock quantity to sell")
		case err != nil:
			response.InternalError(c, "Server error")
		default:
			response.Success(c, resp)
		}
	}
}

// NewOrderHandler handles POST /newOrder
func (h *GinHandlers) NewOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.NewOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Missing required fields")
			return
		}

		order, err := h.service.RecordOrder(req)
		if err != nil {
			response.InternalError(c, "Failed to save order")
			return
		}
		response.Success(c, gin.H{"message": "Order saved successfully", "order": order})
	}
}

// GetUserOrdersHandler handles GET /user/:userId/orders
func (h *GinHandlers) GetUserOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		book, err := h.service.GetUserOrders(userID)
		response.Handle(c, book, err)
	}
}

// GetAllOrdersHandler handles GET /allOrders
func (h *GinHandlers) GetAllOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := h.service.GetAllOrders()
		response.Handle(c, all, err)
	}
}
