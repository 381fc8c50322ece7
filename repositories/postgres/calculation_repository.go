package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
	"go.uber.org/zap"
)

const calculationColumns = `id, operation_type, input_data, result, success, message, request_id, duration_ms, created_at`

// CalculationRepository implements repositories.CalculationRepository on PostgreSQL
type CalculationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCalculationRepository creates a new calculation repository
func NewCalculationRepository(db *DB, logger *zap.Logger) repositories.CalculationRepository {
	return &CalculationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new calculation; the id and created_at come back from the database
func (r *CalculationRepository) Insert(ctx context.Context, calc *models.Calculation) error {
	query := `
		INSERT INTO engine_calculations (
			operation_type, input_data, result, success, message, request_id, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		string(calc.OperationType),
		calc.InputData,
		calc.Result,
		calc.Success,
		calc.Message,
		calc.RequestID,
		calc.DurationMs,
	).Scan(&calc.ID, &calc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}

	r.logger.Debug("calculation inserted",
		zap.Int64("id", calc.ID),
		zap.String("operation_type", string(calc.OperationType)))
	return nil
}

// GetByID retrieves a calculation by ID
func (r *CalculationRepository) GetByID(ctx context.Context, id int64) (*models.Calculation, error) {
	query := `SELECT ` + calculationColumns + ` FROM engine_calculations WHERE id = $1`

	calc, err := scanCalculation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("calculation %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	return calc, nil
}

// List retrieves calculations newest first
func (r *CalculationRepository) List(ctx context.Context, limit, offset int) ([]*models.Calculation, error) {
	query := `
		SELECT ` + calculationColumns + `
		FROM engine_calculations
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer rows.Close()

	calcs := make([]*models.Calculation, 0)
	for rows.Next() {
		calc, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}
		calcs = append(calcs, calc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calculations: %w", err)
	}

	return calcs, nil
}

// Count returns the number of stored calculations
func (r *CalculationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM engine_calculations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count calculations: %w", err)
	}
	return n, nil
}

// InitSchema creates the engine_calculations table
func (r *CalculationRepository) InitSchema(ctx context.Context) error {
	return r.db.InitSchema(ctx)
}

// HealthCheck pings the database
func (r *CalculationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalculation(row rowScanner) (*models.Calculation, error) {
	var (
		calc      models.Calculation
		opType    string
		result    sql.NullString
		message   sql.NullString
		requestID sql.NullString
	)

	err := row.Scan(
		&calc.ID,
		&opType,
		&calc.InputData,
		&result,
		&calc.Success,
		&message,
		&requestID,
		&calc.DurationMs,
		&calc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	calc.OperationType = models.OperationType(opType)
	if result.Valid {
		calc.Result = &result.String
	}
	calc.Message = message.String
	calc.RequestID = requestID.String
	return &calc, nil
}
