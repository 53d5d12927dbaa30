package repository

import (
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByReference(ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("reference = ?", ref).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByGatewayRef(ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("gateway_ref = ?", ref).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// RecordAttempt appends an attempt row and bumps the parent order's counter
// in one transaction. The counter is an atomic SQL increment, never a
// read-modify-write, so concurrent attempts for the same order cannot lose
// updates.
func (r *OrderRepository) RecordAttempt(orderID uint, attempt *models.PaymentAttempt) error {
	attempt.OrderID = orderID
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", orderID).
			Updates(map[string]any{
				"payment_attempts": gorm.Expr("payment_attempts + 1"),
				"last_attempt_at":  time.Now(),
			}).Error
	})
}

// UpdateStatus applies a status transition plus any status-specific fields in
// a single conditional UPDATE. Orders already in a terminal state are left
// untouched and the method reports false, which makes late duplicate writes
// from the webhook/redirect/poll paths harmless no-ops.
func (r *OrderRepository) UpdateStatus(orderID uint, newStatus string, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": newStatus}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, []string{domain.StatusPaid, domain.StatusFailed}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderRepository) AttemptsForOrder(orderID uint) ([]models.PaymentAttempt, error) {
	var list []models.PaymentAttempt
	err := r.db.Where("order_id = ?", orderID).Order("created_at ASC, id ASC").Find(&list).Error
	return list, err
}
