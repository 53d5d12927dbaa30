package repository

import (
	"streamvault/internal/models"

	"gorm.io/gorm"
)

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Latest returns the authoritative config row: the most recently updated one.
// gorm.ErrRecordNotFound when no row has ever been written.
func (r *ConfigRepository) Latest() (*models.GatewayConfig, error) {
	var c models.GatewayConfig
	if err := r.db.Order("updated_at DESC").First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Save updates the existing row in place, or creates the first one lazily.
func (r *ConfigRepository) Save(c *models.GatewayConfig) error {
	return r.db.Save(c).Error
}
