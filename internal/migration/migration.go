package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	fanoutdomain "github.com/smallbiznis/tradeway/internal/fanout/domain"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

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

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// migrator.Close would close the shared *sql.DB.
	return nil
}

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&catalogdomain.Product{},
		&catalogdomain.Variation{},
		&catalogdomain.AffiliateLevel{},
		&catalogdomain.AffiliateProduct{},
		&catalogdomain.SharedProductMapping{},
		&tierdomain.Rule{},
		&clientdomain.Client{},
		&pointsdomain.Balance{},
		&pointsdomain.LogEntry{},
		&inventorydomain.WarehouseStock{},
		&cartdomain.Cart{},
		&cartdomain.Line{},
		&orderdomain.Order{},
		&orderdomain.OrderSequence{},
		&fanoutdomain.Job{},
	}
}

// AutoMigrate builds the schema from the models on databases the SQL
// migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
