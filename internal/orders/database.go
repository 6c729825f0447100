package orders

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

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) GetUserOrders(userID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) GetAllOrders() ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
