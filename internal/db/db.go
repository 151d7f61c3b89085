package db

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"locker-bank-backend/config"
	"locker-bank-backend/internal/model"
)

// Init initializes the database connection, runs migrations and seeds the
// machine inventory.
func Init(cfg *config.DatabaseConfig, machines []config.MachineSeed) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := Seed(db, machines); err != nil {
		return nil, fmt.Errorf("seeding failed: %w", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate applies the schema for all persisted record sets.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Machine{},
		&model.Compartment{},
		&model.Order{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Seed provisions machines and their compartments. It is idempotent:
// machines that already exist are left untouched, so restarts never change
// compartment identities or wipe live statuses. The highest compartment
// number of each machine is marked reserved.
func Seed(db *gorm.DB, machines []config.MachineSeed) error {
	for _, seed := range machines {
		seed := seed
		err := db.Transaction(func(tx *gorm.DB) error {
			var existing model.Machine
			err := tx.First(&existing, seed.ID).Error
			if err == nil {
				return nil // already provisioned
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			machine := model.Machine{
				ID:       seed.ID,
				Name:     seed.Name,
				Location: seed.Location,
				Status:   model.MachineActive,
			}
			if err := tx.Create(&machine).Error; err != nil {
				return fmt.Errorf("create machine %d: %w", seed.ID, err)
			}

			compartments := make([]model.Compartment, 0, seed.Compartments)
			for n := 1; n <= seed.Compartments; n++ {
				compartments = append(compartments, model.Compartment{
					MachineID: machine.ID,
					Number:    n,
					Reserved:  n == seed.Compartments,
					Status:    model.CompartmentAvailable,
				})
			}
			if err := tx.Create(&compartments).Error; err != nil {
				return fmt.Errorf("create compartments for machine %d: %w", seed.ID, err)
			}

			log.Printf("Provisioned machine %d (%s) with %d compartments", machine.ID, machine.Name, seed.Compartments)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
