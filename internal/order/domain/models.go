package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/events"
	"gorm.io/datatypes"
)

const StatusPending = "pending"

type Item struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
}

// Order is written once at intake. TotalAmount is never recomputed downstream.
type Order struct {
	ID              snowflake.ID              `gorm:"primaryKey" json:"orderId"`
	CustomerID      string                    `gorm:"type:varchar(255);not null;index" json:"customerId"`
	CustomerEmail   string                    `gorm:"type:varchar(320);not null" json:"customerEmail"`
	Items           datatypes.JSONSlice[Item] `gorm:"type:json;not null" json:"items"`
	Status          string                    `gorm:"type:varchar(32);not null;index:idx_orders_unpublished,priority:1" json:"status"`
	TotalAmount     int64                     `gorm:"not null" json:"totalAmount"`
	PublishedAt     *time.Time                `gorm:"index:idx_orders_unpublished,priority:2" json:"publishedAt,omitempty"`
	PublishAttempts int                       `gorm:"not null;default:0" json:"publishAttempts"`
	CreatedAt       time.Time                 `gorm:"not null;index:idx_orders_unpublished,priority:3" json:"createdAt"`
	UpdatedAt       time.Time                 `gorm:"not null" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }

// Snapshot is the embedded order carried by the event envelope.
func (o Order) Snapshot() events.OrderSnapshot {
	items := make([]events.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return events.OrderSnapshot{
		OrderID:       o.ID.String(),
		CustomerID:    o.CustomerID,
		CustomerEmail: o.CustomerEmail,
		Items:         items,
		Status:        o.Status,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
	}
}
