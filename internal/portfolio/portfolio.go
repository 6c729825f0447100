// Package portfolio maintains holdings and positions: the weighted-average
// aggregation applied on every executed trade, and the account queries the
// dashboard reads.
package portfolio

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stocksim/stocksim-api/internal/types"
	"github.com/stocksim/stocksim-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles portfolio queries and manual entry.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

func (s *Service) GetUserHoldings(userID string) ([]types.Holding, error) {
	return s.db.GetUserHoldings(userID)
}

func (s *Service) GetAllHoldings() ([]types.Holding, error) {
	return s.db.GetAllHoldings()
}

func (s *Service) GetUserPositions(userID string) ([]types.Position, error) {
	return s.db.GetUserPositions(userID)
}

func (s *Service) GetAllPositions() ([]types.Position, error) {
	return s.db.GetAllPositions()
}

// AddHolding records a holding supplied by hand rather than through a trade.
func (s *Service) AddHolding(userID string, req types.AddHoldingRequest) (*types.Holding, error) {
	h := &types.Holding{
		UserID:    userID,
		Name:      req.Name,
		Qty:       req.Qty,
		Avg:       req.Avg,
		Price:     req.Price,
		Net:       req.Net,
		Day:       req.Day,
		IsLoss:    req.IsLoss,
		UpdatedAt: time.Now(),
	}
	if h.Net == "" {
		h.Net = "+0.00%"
	}
	if h.Day == "" {
		h.Day = "+0.00%"
	}
	if err := s.db.CreateHolding(h); err != nil {
		return nil, err
	}
	return h, nil
}

// AddPosition records a position supplied by hand rather than through a trade.
func (s *Service) AddPosition(userID string, req types.AddPositionRequest) (*types.Position, error) {
	p := &types.Position{
		UserID:    userID,
		Product:   req.Product,
		Name:      req.Name,
		Qty:       req.Qty,
		Avg:       req.Avg,
		Price:     req.Price,
		Net:       req.Net,
		Day:       req.Day,
		IsLoss:    req.IsLoss,
		UpdatedAt: time.Now(),
	}
	if p.Net == "" {
		p.Net = "+0.00%"
	}
	if p.Day == "" {
		p.Day = "+0.00%"
	}
	if err := s.db.CreatePosition(p); err != nil {
		return nil, err
	}
	return p, nil
}

// GinHandlers contains HTTP handlers for holdings and positions endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// GetUserHoldingsHandler handles GET /user/:userId/holdings
func (h *GinHandlers) GetUserHoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		holdings, err := h.service.GetUserHoldings(userID)
		response.Handle(c, holdings, err)
	}
}

// GetUserPositionsHandler handles GET /user/:userId/positions
func (h *GinHandlers) GetUserPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		positions, err := h.service.GetUserPositions(userID)
		response.Handle(c, positions, err)
	}
}

// GetAllHoldingsHandler handles GET /allHoldings
func (h *GinHandlers) GetAllHoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		holdings, err := h.service.GetAllHoldings()
		response.Handle(c, holdings, err)
	}
}

// GetAllPositionsHandler handles GET /allPositions
func (h *GinHandlers) GetAllPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, err := h.service.GetAllPositions()
		response.Handle(c, positions, err)
	}
}

// AddHoldingHandler handles POST /user/:userId/holdings
func (h *GinHandlers) AddHoldingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		var req types.AddHoldingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Missing required fields")
			return
		}

		holding, err := h.service.AddHolding(userID, req)
		if err != nil {
			response.InternalError(c, "Server error")
			return
		}
		response.Success(c, gin.H{"message": "Holding added successfully", "holding": holding})
	}
}

// AddPositionHandler handles POST /user/:userId/positions
func (h *GinHandlers) AddPositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		var req types.AddPositionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Missing required fields")
			return
		}

		position, err := h.service.AddPosition(userID, req)
		if err != nil {
			response.InternalError(c, "Server error")
			return
		}
		response.Success(c, gin.H{"message": "Position added successfully", "position": position})
	}
}
