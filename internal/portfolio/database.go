package portfolio

import (
	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetUserHoldings(userID string) ([]types.Holding, error) {
	var holdings []types.Holding
	if err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

func (d *Database) GetAllHoldings() ([]types.Holding, error) {
	var holdings []types.Holding
	if err := d.db.Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

func (d *Database) GetUserPositions(userID string) ([]types.Position, error) {
	var positions []types.Position
	if err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (d *Database) GetAllPositions() ([]types.Position, error) {
	var positions []types.Position
	if err := d.db.Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (d *Database) CreateHolding(h *types.Holding) error {
	return d.db.Create(h).Error
}

func (d *Database) CreatePosition(p *types.Position) error {
	return d.db.Create(p).Error
}
