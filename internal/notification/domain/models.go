package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	TypeOrderConfirmation = "ORDER_CONFIRMATION"

	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Record is the single notification kept per order. A failed record is
// overwritten by the next attempt.
type Record struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"notificationId"`
	OrderID       string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"orderId"`
	CustomerID    string       `gorm:"type:varchar(255);not null" json:"customerId"`
	CustomerEmail string       `gorm:"type:varchar(320);not null" json:"customerEmail"`
	Type          string       `gorm:"type:varchar(64);not null" json:"type"`
	Subject       string       `gorm:"type:varchar(255);not null" json:"subject"`
	Message       string       `gorm:"type:text;not null" json:"message"`
	Status        string       `gorm:"type:varchar(16);not null" json:"status"`
	Provider      string       `gorm:"type:varchar(32)" json:"provider"`
	LastError     string       `gorm:"type:text" json:"lastError,omitempty"`
	SentAt        *time.Time   `json:"sentAt,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Record) TableName() string { return "notifications" }

type Content struct {
	To      string
	Subject string
	Body    string
}
