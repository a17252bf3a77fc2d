package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusPending = "pending"

	// TaxRateBasisPoints is 10%.
	TaxRateBasisPoints int64 = 1000
	basisPointsScale   int64 = 10000
)

type LineItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Subtotal    int64  `json:"subtotal"`
}

// Record is the single bill created per order. Payment fields stay empty
// until a payment flow exists.
type Record struct {
	ID            snowflake.ID                  `gorm:"primaryKey" json:"billingId"`
	OrderID       string                        `gorm:"type:varchar(64);not null;uniqueIndex" json:"orderId"`
	CustomerID    string                        `gorm:"type:varchar(255);not null" json:"customerId"`
	CustomerEmail string                        `gorm:"type:varchar(320)" json:"customerEmail"`
	Subtotal      int64                         `gorm:"not null" json:"subtotal"`
	Tax           int64                         `gorm:"not null" json:"tax"`
	Total         int64                         `gorm:"not null" json:"total"`
	TaxRate       int64                         `gorm:"not null" json:"taxRate"`
	Items         datatypes.JSONSlice[LineItem] `gorm:"type:json;not null" json:"items"`
	Status        string                        `gorm:"type:varchar(16);not null" json:"status"`
	PaymentMethod *string                       `gorm:"type:varchar(64)" json:"paymentMethod"`
	PaidAt        *time.Time                    `json:"paidAt"`
	CreatedAt     time.Time                     `gorm:"not null" json:"createdAt"`
}

func (Record) TableName() string { return "billing_records" }

// Tax floors subtotal × rate for non-negative subtotals. The split keeps the
// intermediate product inside int64.
func Tax(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	whole := subtotal / basisPointsScale * TaxRateBasisPoints
	rest := subtotal % basisPointsScale * TaxRateBasisPoints / basisPointsScale
	return whole + rest
}
