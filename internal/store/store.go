package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"locker-bank-backend/internal/model"
)

// CloseDepositParams identifies the deposit order being closed and carries
// the withdrawal password generated for it.
type CloseDepositParams struct {
	MachineID    int64
	Number       int
	SessionToken int
	TrackingCode string
	Password     string
}

// CloseWithdrawParams identifies the withdrawal order being closed.
type CloseWithdrawParams struct {
	MachineID    int64
	Number       int
	SessionToken int
}

// MachineSummary is a machine with its compartment counts, for the kiosk's
// machine picker.
type MachineSummary struct {
	model.Machine
	TotalCompartments     int64 `json:"totalCompartments"`
	AvailableCompartments int64 `json:"availableCompartments"`
}

// Store defines all database operations. Every lifecycle mutation runs as
// one transaction: a concurrent reader never observes a compartment status
// without its matching order status.
type Store interface {
	DB() *gorm.DB

	// Registry reads.
	GetMachine(ctx context.Context, machineID int64) (model.Machine, error)
	ListMachines(ctx context.Context) ([]MachineSummary, error)
	CompartmentsForMachine(ctx context.Context, machineID int64) ([]model.Compartment, error)
	FindAvailableCompartment(ctx context.Context, machineID int64) (model.Compartment, error)
	HasActivePassword(ctx context.Context, machineID int64, password string) (bool, error)

	// Ledger mutations.
	CreateDeposit(ctx context.Context, machineID int64, trackingCode string, sessionToken int) (model.Compartment, model.Order, error)
	CloseDeposit(ctx context.Context, p CloseDepositParams) (model.Order, error)
	OpenWithdraw(ctx context.Context, machineID int64, password string) (model.Order, model.Compartment, error)
	CloseWithdraw(ctx context.Context, p CloseWithdrawParams) (model.Order, error)
	ResetCompartment(ctx context.Context, machineID int64, number int) (bool, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// GetMachine looks a machine up by its external ID.
func (s *gormStore) GetMachine(ctx context.Context, machineID int64) (model.Machine, error) {
	var machine model.Machine
	err := s.db.WithContext(ctx).First(&machine, machineID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Machine{}, ErrMachineNotFound
	}
	if err != nil {
		return model.Machine{}, fmt.Errorf("fetch machine %d: %w", machineID, err)
	}
	return machine, nil
}

// ListMachines returns every machine with aggregated compartment counts.
// Reserved compartments are excluded from both counts.
func (s *gormStore) ListMachines(ctx context.Context) ([]MachineSummary, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}

	type aggRow struct {
		MachineID int64
		Total     int64
		Available int64
	}
	var aggs []aggRow
	err := s.db.WithContext(ctx).
		Model(&model.Compartment{}).
		Select("machine_id, COUNT(*) as total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as available", model.CompartmentAvailable).
		Where("reserved = ?", false).
		Group("machine_id").
		Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate compartments: %w", err)
	}

	aggMap := make(map[int64]aggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.MachineID] = a
	}

	summaries := make([]MachineSummary, 0, len(machines))
	for _, m := range machines {
		a := aggMap[m.ID]
		summaries = append(summaries, MachineSummary{
			Machine:               m,
			TotalCompartments:     a.Total,
			AvailableCompartments: a.Available,
		})
	}
	return summaries, nil
}

// CompartmentsForMachine returns the machine's compartments ordered by
// number, for the status query.
func (s *gormStore) CompartmentsForMachine(ctx context.Context, machineID int64) ([]model.Compartment, error) {
	if _, err := s.GetMachine(ctx, machineID); err != nil {
		return nil, err
	}
	var compartments []model.Compartment
	err := s.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("number").
		Find(&compartments).Error
	if err != nil {
		return nil, fmt.Errorf("fetch compartments for machine %d: %w", machineID, err)
	}
	return compartments, nil
}

// FindAvailableCompartment scans the machine's compartments for the
// lowest-numbered available one, excluding reserved numbers. Read-only: the
// selection becomes durable only when CreateDeposit commits.
func (s *gormStore) FindAvailableCompartment(ctx context.Context, machineID int64) (model.Compartment, error) {
	var compartment model.Compartment
	err := s.db.WithContext(ctx).
		Where("machine_id = ? AND status = ? AND reserved = ?", machineID, model.CompartmentAvailable, false).
		Order("number").
		First(&compartment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Compartment{}, ErrNoCompartmentAvailable
	}
	if err != nil {
		return model.Compartment{}, fmt.Errorf("scan compartments for machine %d: %w", machineID, err)
	}
	return compartment, nil
}

// HasActivePassword reports whether any non-terminal order on the machine
// already uses the given password.
func (s *gormStore) HasActivePassword(ctx context.Context, machineID int64, password string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("machine_id = ? AND password = ? AND status NOT IN ?",
			machineID, password, []model.OrderStatus{model.OrderWithdrawn, model.OrderCancelled}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check active passwords for machine %d: %w", machineID, err)
	}
	return count > 0, nil
}

// CreateDeposit allocates the lowest available compartment of an active
// machine, creates the awaiting-close order and marks the compartment
// deposit_open, all in one transaction.
func (s *gormStore) CreateDeposit(ctx context.Context, machineID int64, trackingCode string, sessionToken int) (model.Compartment, model.Order, error) {
	var compartment model.Compartment
	var order model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var machine model.Machine
		if err := tx.First(&machine, machineID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMachineNotFound
			}
			return err
		}
		if machine.Status != model.MachineActive {
			return ErrMachineInactive
		}

		if err := tx.
			Where("machine_id = ? AND status = ? AND reserved = ?", machineID, model.CompartmentAvailable, false).
			Order("number").
			First(&compartment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoCompartmentAvailable
			}
			return err
		}

		if !compartment.Status.CanTransition(model.CompartmentDepositOpen) {
			return ErrInvalidState
		}
		compartment.Status = model.CompartmentDepositOpen
		if err := tx.Model(&model.Compartment{}).Where("id = ?", compartment.ID).
			Update("status", compartment.Status).Error; err != nil {
			return err
		}

		order = model.Order{
			MachineID:     machineID,
			CompartmentID: compartment.ID,
			SessionToken:  sessionToken,
			TrackingCode:  trackingCode,
			Status:        model.OrderAwaitingClose,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return model.Compartment{}, model.Order{}, err
	}
	return compartment, order, nil
}

// CloseDeposit finalizes a deposit: the matching awaiting-close order gets
// its password and becomes closed, the compartment becomes occupied.
func (s *gormStore) CloseDeposit(ctx context.Context, p CloseDepositParams) (model.Order, error) {
	var order model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		compartment, err := compartmentByNumber(tx, p.MachineID, p.Number)
		if err != nil {
			return err
		}

		if err := tx.
			Where("compartment_id = ? AND session_token = ? AND tracking_code = ?",
				compartment.ID, p.SessionToken, p.TrackingCode).
			Order("created_at DESC, id DESC").
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if !order.Status.CanTransition(model.OrderClosed) {
			return ErrInvalidState
		}
		if !compartment.Status.CanTransition(model.CompartmentOccupied) {
			return ErrInvalidState
		}

		order.Status = model.OrderClosed
		order.Password = p.Password
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Updates(map[string]any{"status": order.Status, "password": order.Password}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Compartment{}).Where("id = ?", compartment.ID).
			Update("status", model.CompartmentOccupied).Error
	})
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// OpenWithdraw resolves a password to the most recently created closed
// order on the machine and opens the withdrawal: order becomes
// withdraw_in_progress, compartment becomes withdraw_open.
func (s *gormStore) OpenWithdraw(ctx context.Context, machineID int64, password string) (model.Order, model.Compartment, error) {
	var order model.Order
	var compartment model.Compartment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Machine{}, machineID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMachineNotFound
			}
			return err
		}

		if err := tx.
			Where("machine_id = ? AND password = ? AND password <> ''", machineID, password).
			Order("created_at DESC, id DESC").
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidCredential
			}
			return err
		}

		if err := tx.First(&compartment, order.CompartmentID).Error; err != nil {
			return err
		}

		if order.Status != model.OrderClosed || compartment.Status != model.CompartmentOccupied {
			return ErrNotAvailable
		}

		order.Status = model.OrderWithdrawInProgress
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("status", order.Status).Error; err != nil {
			return err
		}
		compartment.Status = model.CompartmentWithdrawOpen
		return tx.Model(&model.Compartment{}).Where("id = ?", compartment.ID).
			Update("status", compartment.Status).Error
	})
	if err != nil {
		return model.Order{}, model.Compartment{}, err
	}
	return order, compartment, nil
}

// CloseWithdraw finalizes a withdrawal: order becomes withdrawn (terminal),
// compartment becomes available again.
func (s *gormStore) CloseWithdraw(ctx context.Context, p CloseWithdrawParams) (model.Order, error) {
	var order model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		compartment, err := compartmentByNumber(tx, p.MachineID, p.Number)
		if err != nil {
			return err
		}

		if err := tx.
			Where("compartment_id = ? AND session_token = ?", compartment.ID, p.SessionToken).
			Order("created_at DESC, id DESC").
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.Status != model.OrderWithdrawInProgress {
			return ErrInvalidState
		}
		if !compartment.Status.CanTransition(model.CompartmentAvailable) {
			return ErrInvalidState
		}

		order.Status = model.OrderWithdrawn
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("status", order.Status).Error; err != nil {
			return err
		}
		return tx.Model(&model.Compartment{}).Where("id = ?", compartment.ID).
			Update("status", model.CompartmentAvailable).Error
	})
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// ResetCompartment is the administrative override: it cancels every
// non-terminal order on the compartment and forces the status back to
// available, regardless of the current state. Idempotent; reports whether
// the compartment actually changed.
func (s *gormStore) ResetCompartment(ctx context.Context, machineID int64, number int) (bool, error) {
	var freed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var compartment model.Compartment
		if err := tx.
			Where("machine_id = ? AND number = ?", machineID, number).
			First(&compartment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompartmentNotFound
			}
			return err
		}

		freed = compartment.Status != model.CompartmentAvailable

		if err := tx.Model(&model.Order{}).
			Where("compartment_id = ? AND status NOT IN ?", compartment.ID,
				[]model.OrderStatus{model.OrderWithdrawn, model.OrderCancelled}).
			Update("status", model.OrderCancelled).Error; err != nil {
			return err
		}
		return tx.Model(&model.Compartment{}).Where("id = ?", compartment.ID).
			Update("status", model.CompartmentAvailable).Error
	})
	if err != nil {
		return false, err
	}
	return freed, nil
}

// compartmentByNumber resolves a (machine, number) pair inside a
// transaction. Reserved compartments never take part in the lifecycle, so
// naming one is a validation failure rather than a lookup miss.
func compartmentByNumber(tx *gorm.DB, machineID int64, number int) (model.Compartment, error) {
	var compartment model.Compartment
	err := tx.
		Where("machine_id = ? AND number = ?", machineID, number).
		First(&compartment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Compartment{}, ErrCompartmentNotFound
	}
	if err != nil {
		return model.Compartment{}, err
	}
	if compartment.Reserved {
		return model.Compartment{}, ErrInvalidCompartment
	}
	return compartment, nil
}
