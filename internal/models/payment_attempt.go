package models

import "time"

// PaymentAttempt is one row per authorization call that reached the gateway.
// Rows are append-only; the parent order's counter is incremented in the same
// transaction that inserts the row.
type PaymentAttempt struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           uint      `gorm:"not null;index" json:"order_id"`
	Outcome           string    `gorm:"size:20;not null" json:"outcome"` // pending | success | failed
	PaymentMethod     string    `gorm:"size:50" json:"payment_method"`
	ErrorCode         string    `gorm:"size:64" json:"error_code"`
	ErrorMessage      string    `gorm:"size:512" json:"error_message"`
	FailureCategory   string    `gorm:"size:32" json:"failure_category"`
	ThreeDSRequired   bool      `gorm:"default:false" json:"is_3ds_required"`
	ThreeDSSuccessful *bool     `json:"is_3ds_successful"`
	ProcessingMs      int64     `json:"processing_ms"`
	IPAddress         string    `gorm:"size:45" json:"-"`
	DeviceInfo        string    `gorm:"size:512" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }
