package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const paymentColumns = `
	id, contract_id, amount, gateway_charge_id, status, occurred_at,
	created_at, updated_at`

// PostgresPaymentRepository implements domain.PaymentRepository using
// PostgreSQL. A unique index on gateway_charge_id makes duplicate charge
// records impossible at the storage layer; rows only ever change status,
// when a pending attempt settles.
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository.
func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

// paymentRow represents a database row for payments.
type paymentRow struct {
	ID              uuid.UUID
	ContractID      uuid.UUID
	Amount          decimal.Decimal
	GatewayChargeID string
	Status          string
	OccurredAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Add appends a payment record.
func (r *PostgresPaymentRepository) Add(ctx context.Context, payment *domain.Payment) error {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := exec.Exec(ctx, query,
		payment.ID(),
		payment.ContractID(),
		payment.Amount(),
		payment.GatewayChargeID(),
		string(payment.Status()),
		payment.OccurredAt(),
		payment.CreatedAt(),
		payment.UpdatedAt(),
	)
	return err
}

// Update settles a payment's status once the processor confirms it.
func (r *PostgresPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := exec.Exec(ctx, query,
		payment.ID(),
		string(payment.Status()),
		payment.UpdatedAt(),
	)
	return err
}

// FindByGatewayChargeID retrieves a payment by processor charge reference.
// Returns nil, nil when absent.
func (r *PostgresPaymentRepository) FindByGatewayChargeID(ctx context.Context, gatewayChargeID string) (*domain.Payment, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_charge_id = $1`

	row, err := scanPaymentRow(exec.QueryRow(ctx, query, gatewayChargeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToPayment(row), nil
}

// ListByContract retrieves a contract's payment history, newest first.
func (r *PostgresPaymentRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]*domain.Payment, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE contract_id = $1
		ORDER BY occurred_at DESC
	`
	rows, err := exec.Query(ctx, query, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		row, err := scanPaymentRow(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, rowToPayment(row))
	}
	return payments, rows.Err()
}

func scanPaymentRow(row pgx.Row) (paymentRow, error) {
	var r paymentRow
	err := row.Scan(
		&r.ID,
		&r.ContractID,
		&r.Amount,
		&r.GatewayChargeID,
		&r.Status,
		&r.OccurredAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func rowToPayment(row paymentRow) *domain.Payment {
	return domain.RehydratePayment(
		row.ID,
		row.ContractID,
		row.Amount,
		row.GatewayChargeID,
		domain.PaymentStatus(row.Status),
		row.OccurredAt,
		row.CreatedAt,
		row.UpdatedAt,
	)
}
