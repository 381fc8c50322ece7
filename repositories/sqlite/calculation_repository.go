package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
	"go.uber.org/zap"
)

const calculationColumns = `id, operation_type, input_data, result, success, message, request_id, duration_ms, created_at`

// CalculationRepository implements repositories.CalculationRepository on SQLite
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

// Insert inserts a new calculation and reads back the assigned id and created_at
func (r *CalculationRepository) Insert(ctx context.Context, calc *models.Calculation) error {
	query := `
		INSERT INTO engine_calculations (
			operation_type, input_data, result, success, message, request_id, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at
	`

	var createdAt string
	err := r.db.QueryRowContext(ctx, query,
		string(calc.OperationType),
		calc.InputData,
		calc.Result,
		calc.Success,
		calc.Message,
		calc.RequestID,
		calc.DurationMs,
	).Scan(&calc.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}
	calc.CreatedAt = parseTime(createdAt)

	r.logger.Debug("calculation inserted",
		zap.Int64("id", calc.ID),
		zap.String("operation_type", string(calc.OperationType)))
	return nil
}

// GetByID retrieves a calculation by ID
func (r *CalculationRepository) GetByID(ctx context.Context, id int64) (*models.Calculation, error) {
	query := `SELECT ` + calculationColumns + ` FROM engine_calculations WHERE id = ?`

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
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// HealthCheck runs a trivial query
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
		createdAt string
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
		&createdAt,
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
	calc.CreatedAt = parseTime(createdAt)
	return &calc, nil
}

// parseTime reads created_at as written by strftime, falling back to
// SQLite's default "YYYY-MM-DD HH:MM:SS" form.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
