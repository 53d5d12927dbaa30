package models

import "time"

// AuditLog is the operator channel: bookkeeping failures after a successful
// gateway authorization, config changes, and webhook-driven transitions land
// here.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Actor      string    `gorm:"size:255" json:"actor"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	Resource   string    `gorm:"size:64" json:"resource"`
	ResourceID string    `gorm:"size:255;index" json:"resource_id"`
	Detail     string    `gorm:"size:1024" json:"detail"`
	IP         string    `gorm:"size:45" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
