package seed

import (
	"context"
	"errors"
	"time"

	inventorydomain "github.com/smallbiznis/orderflow/internal/inventory/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the sample product set loaded on bootstrap. Prices are in minor units.
var Catalog = []inventorydomain.Record{
	{ProductID: "prod-001", ProductName: "Laptop", Price: 99800, Stock: 50},
	{ProductID: "prod-002", ProductName: "Mouse", Price: 2980, Stock: 200},
	{ProductID: "prod-003", ProductName: "Keyboard", Price: 8980, Stock: 120},
	{ProductID: "prod-004", ProductName: "Monitor", Price: 34800, Stock: 40},
	{ProductID: "prod-005", ProductName: "USB-C Hub", Price: 4580, Stock: 150},
}

// EnsureInventory inserts the sample catalog. Existing rows keep their stock.
// It returns the number of products that were inserted.
func EnsureInventory(db *gorm.DB) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}

	now := time.Now().UTC()
	records := make([]inventorydomain.Record, len(Catalog))
	for i, r := range Catalog {
		r.LastUpdated = now
		records[i] = r
	}

	ctx := context.Background()
	var inserted int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "product_id"}},
				DoNothing: true,
			}).Create(&records[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
