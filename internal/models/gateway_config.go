package models

import "time"

// GatewayConfig selects and authorizes the active payment gateway. The most
// recently updated row is authoritative; when IsEnabled is false no checkout
// may be created regardless of the other fields.
type GatewayConfig struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	IsEnabled            bool      `gorm:"not null;default:false" json:"isEnabled"`
	ActiveGateway        string    `gorm:"size:20;not null;default:'sumup'" json:"activeGateway"`
	SumupAPIKey          string    `gorm:"size:255" json:"sumupKey,omitempty"`
	SumupMerchantEmail   string    `gorm:"size:255" json:"sumupMerchantEmail,omitempty"`
	StripePublishableKey string    `gorm:"size:255" json:"stripePublishableKey,omitempty"`
	StripeSecretKey      string    `gorm:"size:255" json:"stripeSecretKey,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (GatewayConfig) TableName() string { return "payment_config" }
