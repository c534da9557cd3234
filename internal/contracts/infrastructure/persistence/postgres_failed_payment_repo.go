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

const failedPaymentColumns = `
	id, contract_id, amount, retry_count, next_retry_date, status,
	last_failure_reason, created_at, updated_at, version`

// PostgresFailedPaymentRepository implements domain.FailedPaymentRepository
// using PostgreSQL. Like contracts, writes are versioned so a retry sweep
// and a webhook resolving the same record cannot both win.
type PostgresFailedPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFailedPaymentRepository creates a new PostgreSQL failed payment repository.
func NewPostgresFailedPaymentRepository(pool *pgxpool.Pool) *PostgresFailedPaymentRepository {
	return &PostgresFailedPaymentRepository{pool: pool}
}

// failedPaymentRow represents a database row for failed payments.
type failedPaymentRow struct {
	ID                uuid.UUID
	ContractID        uuid.UUID
	Amount            decimal.Decimal
	RetryCount        int
	NextRetryDate     time.Time
	Status            string
	LastFailureReason string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int
}

// Save persists a failed payment record with optimistic concurrency.
func (r *PostgresFailedPaymentRepository) Save(ctx context.Context, fp *domain.FailedPayment) error {
	exec := database.ExecutorFromContext(ctx, r.pool)

	if fp.Version() == 0 {
		query := `
			INSERT INTO failed_payments (` + failedPaymentColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := exec.Exec(ctx, query,
			fp.ID(),
			fp.ContractID(),
			fp.Amount(),
			fp.RetryCount(),
			fp.NextRetryDate(),
			string(fp.Status()),
			fp.LastFailureReason(),
			fp.CreatedAt(),
			fp.UpdatedAt(),
			1,
		)
		if err != nil {
			return err
		}
		fp.IncrementVersion()
		return nil
	}

	query := `
		UPDATE failed_payments SET
			retry_count = $2,
			next_retry_date = $3,
			status = $4,
			last_failure_reason = $5,
			updated_at = $6,
			version = $7
		WHERE id = $1 AND version = $8
	`
	tag, err := exec.Exec(ctx, query,
		fp.ID(),
		fp.RetryCount(),
		fp.NextRetryDate(),
		string(fp.Status()),
		fp.LastFailureReason(),
		fp.UpdatedAt(),
		fp.Version()+1,
		fp.Version(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sharedDomain.ErrVersionConflict
	}
	fp.IncrementVersion()
	return nil
}

// FindByID retrieves a failed payment by its ID. Returns nil, nil when absent.
func (r *PostgresFailedPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.FailedPayment, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `SELECT ` + failedPaymentColumns + ` FROM failed_payments WHERE id = $1`

	row, err := scanFailedPaymentRow(exec.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToFailedPayment(row), nil
}

// FindDueForRetry returns pending records whose next retry is at or before asOf.
func (r *PostgresFailedPaymentRepository) FindDueForRetry(ctx context.Context, asOf time.Time) ([]*domain.FailedPayment, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		SELECT ` + failedPaymentColumns + `
		FROM failed_payments
		WHERE status = $1 AND next_retry_date <= $2
		ORDER BY next_retry_date
	`
	rows, err := exec.Query(ctx, query, string(domain.RetryPending), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFailedPayments(rows)
}

// FindOpenByContract returns the contract's open retry record, if any.
func (r *PostgresFailedPaymentRepository) FindOpenByContract(ctx context.Context, contractID uuid.UUID) (*domain.FailedPayment, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		SELECT ` + failedPaymentColumns + `
		FROM failed_payments
		WHERE contract_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	row, err := scanFailedPaymentRow(exec.QueryRow(ctx, query, contractID,
		string(domain.RetryPending), string(domain.RetryInFlight)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToFailedPayment(row), nil
}

func scanFailedPayments(rows pgx.Rows) ([]*domain.FailedPayment, error) {
	var records []*domain.FailedPayment
	for rows.Next() {
		row, err := scanFailedPaymentRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rowToFailedPayment(row))
	}
	return records, rows.Err()
}

func scanFailedPaymentRow(row pgx.Row) (failedPaymentRow, error) {
	var r failedPaymentRow
	err := row.Scan(
		&r.ID,
		&r.ContractID,
		&r.Amount,
		&r.RetryCount,
		&r.NextRetryDate,
		&r.Status,
		&r.LastFailureReason,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Version,
	)
	return r, err
}

func rowToFailedPayment(row failedPaymentRow) *domain.FailedPayment {
	return domain.RehydrateFailedPayment(domain.RehydratedFailedPayment{
		ID:                row.ID,
		ContractID:        row.ContractID,
		Amount:            row.Amount,
		RetryCount:        row.RetryCount,
		NextRetryDate:     row.NextRetryDate,
		Status:            domain.FailedPaymentStatus(row.Status),
		LastFailureReason: row.LastFailureReason,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		Version:           row.Version,
	})
}
