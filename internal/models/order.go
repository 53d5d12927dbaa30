package models

import (
	"time"

	"gorm.io/gorm"
)

// Order is one checkout attempt end-to-end. Rows are never deleted; failed
// and refunded orders are retained for audit.
type Order struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Reference           string         `gorm:"size:64;uniqueIndex;not null" json:"checkout_reference"`
	GatewayRef          string         `gorm:"size:255;uniqueIndex" json:"gateway_ref"`
	Gateway             string         `gorm:"size:20;not null" json:"gateway"` // sumup | stripe
	OriginalAmountCents int64          `gorm:"not null" json:"original_amount_cents"`
	FinalAmountCents    int64          `gorm:"not null" json:"final_amount_cents"`
	Currency            string         `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	Status              string         `gorm:"size:20;not null;index" json:"status"`
	ClientEmail         string         `gorm:"size:255;not null" json:"client_email"`
	ClientName          string         `gorm:"size:255;not null" json:"client_name"`
	ClientPhone         string         `gorm:"size:32" json:"client_phone"`
	ClientCountry       string         `gorm:"size:2" json:"client_country"`
	Description         string         `gorm:"size:255" json:"description"`
	PaymentMethod       string         `gorm:"size:50" json:"payment_method"`
	CardLast4           string         `gorm:"size:4" json:"card_last4"`
	CardBrand           string         `gorm:"size:20" json:"card_brand"`
	TransactionID       string         `gorm:"size:255" json:"transaction_id"`
	TransactionCode     string         `gorm:"size:255" json:"transaction_code"`
	CouponCode          string         `gorm:"size:64" json:"coupon_code"`
	ErrorCode           string         `gorm:"size:64" json:"error_code"`
	ErrorMessage        string         `gorm:"size:512" json:"error_message"`
	FailureCategory     string         `gorm:"size:32" json:"failure_category"`
	PaymentAttempts     int            `gorm:"not null;default:0" json:"payment_attempts"`
	LastAttemptAt       *time.Time     `json:"last_attempt_at"`
	ThreeDSRequired     bool           `gorm:"default:false" json:"is_3ds_required"`
	ThreeDSSuccessful   *bool          `json:"is_3ds_successful"`
	IPAddress           string         `gorm:"size:45" json:"-"`
	DeviceInfo          string         `gorm:"size:512" json:"-"`
	ProcessingMs        int64          `json:"processing_ms"`
	PaidAt              *time.Time     `json:"paid_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`

	Attempts []PaymentAttempt `gorm:"foreignKey:OrderID" json:"-"`
}

func (Order) TableName() string { return "orders" }
