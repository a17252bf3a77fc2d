package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingdomain "github.com/smallbiznis/orderflow/internal/billing/domain"
	inventorydomain "github.com/smallbiznis/orderflow/internal/inventory/domain"
	notificationdomain "github.com/smallbiznis/orderflow/internal/notification/domain"
	orderdomain "github.com/smallbiznis/orderflow/internal/order/domain"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"gorm.io/gorm"
)

// Models lists every table the pipeline writes, for dialects migrated with
// AutoMigrate instead of the embedded SQL.
func Models() []any {
	return []any{
		&orderdomain.Order{},
		&queuedomain.Message{},
		&queuedomain.DeadLetter{},
		&inventorydomain.Record{},
		&inventorydomain.Application{},
		&notificationdomain.Record{},
		&billingdomain.Record{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
