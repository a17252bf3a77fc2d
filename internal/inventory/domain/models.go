package domain

import "time"

// Record is the stock level of one product. Stock only changes through the
// conditional decrement and never goes below zero.
type Record struct {
	ProductID   string    `gorm:"primaryKey;type:varchar(255)" json:"productId"`
	ProductName string    `gorm:"type:varchar(255);not null" json:"productName"`
	Price       int64     `gorm:"not null;default:0" json:"price"`
	Stock       int64     `gorm:"not null;check:chk_inventory_stock_non_negative,stock >= 0" json:"stock"`
	LastUpdated time.Time `gorm:"not null" json:"lastUpdated"`
	LastOrderID string    `gorm:"type:varchar(64)" json:"lastOrderId,omitempty"`
}

func (Record) TableName() string { return "inventory" }

// Application records that an order's line item already decremented stock.
type Application struct {
	OrderID   string    `gorm:"primaryKey;type:varchar(64)" json:"orderId"`
	ProductID string    `gorm:"primaryKey;type:varchar(255)" json:"productId"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	AppliedAt time.Time `gorm:"not null" json:"appliedAt"`
}

func (Application) TableName() string { return "inventory_applications" }

// ItemResult is the outcome of applying one line item.
type ItemResult struct {
	ProductID string
	Applied   bool
	Skipped   bool
	Err       error
}
