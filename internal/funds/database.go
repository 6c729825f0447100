package funds

import (
	"errors"

	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetByUser(userID string) (*types.Funds, error) {
	return Get(d.db, userID)
}

func (d *Database) Create(f *types.Funds) error {
	return d.db.Create(f).Error
}

// Get loads the funds record for a user on the given connection, which may
// be a transaction. A missing row maps to ErrFundsNotFound.
func Get(db *gorm.DB, userID string) (*types.Funds, error) {
	var f types.Funds
	if err := db.Where("user_id = ?", userID).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFundsNotFound
		}
		return nil, err
	}
	return &f, nil
}
