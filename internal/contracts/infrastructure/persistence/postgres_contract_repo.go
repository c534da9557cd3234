package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const contractColumns = `
	id, owner_id, monthly_payment, duration_months, total_obligation,
	amount_paid, next_payment_due, penalty_percentage, interest_rate,
	compound_frequency, collateral_type, accepted, in_liquidation,
	cancelled_at, gateway_customer_id, gateway_subscription_id,
	gateway_payment_method_id, last_first_warning_at, last_penalty_applied_at,
	last_final_warning_at, last_reminder_at, created_at, updated_at, version`

// PostgresContractRepository implements domain.ContractRepository using
// PostgreSQL. Save is a versioned conditional write: concurrent mutators of
// the same contract lose with ErrVersionConflict instead of clobbering
// amounts.
type PostgresContractRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresContractRepository creates a new PostgreSQL contract repository.
func NewPostgresContractRepository(pool *pgxpool.Pool) *PostgresContractRepository {
	return &PostgresContractRepository{pool: pool}
}

// contractRow represents a database row for contracts.
type contractRow struct {
	ID                     uuid.UUID
	OwnerID                uuid.UUID
	MonthlyPayment         decimal.Decimal
	DurationMonths         int
	TotalObligation        decimal.Decimal
	AmountPaid             decimal.Decimal
	NextPaymentDue         *time.Time
	PenaltyPercentage      decimal.Decimal
	InterestRate           decimal.Decimal
	CompoundFrequency      string
	CollateralType         string
	Accepted               bool
	InLiquidation          bool
	CancelledAt            *time.Time
	GatewayCustomerID      string
	GatewaySubscriptionID  string
	GatewayPaymentMethodID string
	LastFirstWarningAt     *time.Time
	LastPenaltyAppliedAt   *time.Time
	LastFinalWarningAt     *time.Time
	LastReminderAt         *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	Version                int
}

// Save persists a contract. New aggregates (version zero) are inserted;
// existing ones are updated only when the stored version still matches.
func (r *PostgresContractRepository) Save(ctx context.Context, contract *domain.Contract) error {
	exec := database.ExecutorFromContext(ctx, r.pool)

	if contract.Version() == 0 {
		query := `
			INSERT INTO contracts (` + contractColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		`
		_, err := exec.Exec(ctx, query, r.saveArgs(contract, 1)...)
		if err != nil {
			return err
		}
		contract.IncrementVersion()
		return nil
	}

	query := `
		UPDATE contracts SET
			monthly_payment = $2,
			duration_months = $3,
			total_obligation = $4,
			amount_paid = $5,
			next_payment_due = $6,
			penalty_percentage = $7,
			interest_rate = $8,
			compound_frequency = $9,
			collateral_type = $10,
			accepted = $11,
			in_liquidation = $12,
			cancelled_at = $13,
			gateway_customer_id = $14,
			gateway_subscription_id = $15,
			gateway_payment_method_id = $16,
			last_first_warning_at = $17,
			last_penalty_applied_at = $18,
			last_final_warning_at = $19,
			last_reminder_at = $20,
			updated_at = $21,
			version = $22
		WHERE id = $1 AND version = $23
	`
	tag, err := exec.Exec(ctx, query, r.updateArgs(contract)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sharedDomain.ErrVersionConflict
	}
	contract.IncrementVersion()
	return nil
}

func (r *PostgresContractRepository) saveArgs(contract *domain.Contract, version int) []any {
	return []any{
		contract.ID(),
		contract.OwnerID(),
		contract.MonthlyPayment(),
		contract.DurationMonths(),
		contract.TotalObligation(),
		contract.AmountPaid(),
		contract.NextPaymentDue(),
		contract.PenaltyPercentage(),
		contract.InterestRate(),
		string(contract.CompoundFrequency()),
		string(contract.CollateralType()),
		contract.IsAccepted(),
		contract.InLiquidation(),
		contract.CancelledAt(),
		contract.GatewayCustomerID(),
		contract.GatewaySubscriptionID(),
		contract.GatewayPaymentMethodID(),
		contract.LastFirstWarningAt(),
		contract.LastPenaltyAppliedAt(),
		contract.LastFinalWarningAt(),
		contract.LastReminderAt(),
		contract.CreatedAt(),
		contract.UpdatedAt(),
		version,
	}
}

// updateArgs binds only the columns the UPDATE sets: owner_id and created_at
// are immutable after insert, so they carry no placeholder.
func (r *PostgresContractRepository) updateArgs(contract *domain.Contract) []any {
	return []any{
		contract.ID(),
		contract.MonthlyPayment(),
		contract.DurationMonths(),
		contract.TotalObligation(),
		contract.AmountPaid(),
		contract.NextPaymentDue(),
		contract.PenaltyPercentage(),
		contract.InterestRate(),
		string(contract.CompoundFrequency()),
		string(contract.CollateralType()),
		contract.IsAccepted(),
		contract.InLiquidation(),
		contract.CancelledAt(),
		contract.GatewayCustomerID(),
		contract.GatewaySubscriptionID(),
		contract.GatewayPaymentMethodID(),
		contract.LastFirstWarningAt(),
		contract.LastPenaltyAppliedAt(),
		contract.LastFinalWarningAt(),
		contract.LastReminderAt(),
		contract.UpdatedAt(),
		contract.Version() + 1,
		contract.Version(),
	}
}

// FindByID retrieves a contract by its ID. Returns nil, nil when absent.
func (r *PostgresContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	row, err := scanContractRow(exec.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToContract(row), nil
}

// FindOverdue returns accepted, non-cancelled contracts whose due date is
// strictly before asOf.
func (r *PostgresContractRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]*domain.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE accepted
		  AND cancelled_at IS NULL
		  AND next_payment_due IS NOT NULL
		  AND next_payment_due < $1
		ORDER BY next_payment_due
	`
	return r.queryContracts(ctx, query, asOf)
}

// FindBilled returns accepted, non-cancelled contracts with a due date set.
func (r *PostgresContractRepository) FindBilled(ctx context.Context) ([]*domain.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE accepted
		  AND cancelled_at IS NULL
		  AND next_payment_due IS NOT NULL
		ORDER BY next_payment_due
	`
	return r.queryContracts(ctx, query)
}

func (r *PostgresContractRepository) queryContracts(ctx context.Context, query string, args ...any) ([]*domain.Contract, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		row, err := scanContractRow(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, rowToContract(row))
	}
	return contracts, rows.Err()
}

func scanContractRow(row pgx.Row) (contractRow, error) {
	var r contractRow
	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.MonthlyPayment,
		&r.DurationMonths,
		&r.TotalObligation,
		&r.AmountPaid,
		&r.NextPaymentDue,
		&r.PenaltyPercentage,
		&r.InterestRate,
		&r.CompoundFrequency,
		&r.CollateralType,
		&r.Accepted,
		&r.InLiquidation,
		&r.CancelledAt,
		&r.GatewayCustomerID,
		&r.GatewaySubscriptionID,
		&r.GatewayPaymentMethodID,
		&r.LastFirstWarningAt,
		&r.LastPenaltyAppliedAt,
		&r.LastFinalWarningAt,
		&r.LastReminderAt,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Version,
	)
	return r, err
}

func rowToContract(row contractRow) *domain.Contract {
	return domain.RehydrateContract(domain.RehydratedContract{
		ID:                     row.ID,
		OwnerID:                row.OwnerID,
		MonthlyPayment:         row.MonthlyPayment,
		DurationMonths:         row.DurationMonths,
		TotalObligation:        row.TotalObligation,
		AmountPaid:             row.AmountPaid,
		NextPaymentDue:         row.NextPaymentDue,
		PenaltyPercentage:      row.PenaltyPercentage,
		InterestRate:           row.InterestRate,
		CompoundFrequency:      domain.CompoundFrequency(row.CompoundFrequency),
		CollateralType:         domain.CollateralType(row.CollateralType),
		Accepted:               row.Accepted,
		InLiquidation:          row.InLiquidation,
		CancelledAt:            row.CancelledAt,
		GatewayCustomerID:      row.GatewayCustomerID,
		GatewaySubscriptionID:  row.GatewaySubscriptionID,
		GatewayPaymentMethodID: row.GatewayPaymentMethodID,
		LastFirstWarningAt:     row.LastFirstWarningAt,
		LastPenaltyAppliedAt:   row.LastPenaltyAppliedAt,
		LastFinalWarningAt:     row.LastFinalWarningAt,
		LastReminderAt:         row.LastReminderAt,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
		Version:                row.Version,
	})
}
