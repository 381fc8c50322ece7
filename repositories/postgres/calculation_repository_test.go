package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
	"go.uber.org/zap"
)

var calculationRowColumns = []string{
	"id", "operation_type", "input_data", "result", "success", "message", "request_id", "duration_ms", "created_at",
}

func newMockRepository(t *testing.T) (repositories.CalculationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewCalculationRepository(Wrap(db, zap.NewNop()), zap.NewNop()), mock
}

func TestCalculationRepository_Insert(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	calc := models.NewCalculation(models.OperationAdd, `{"a":2,"b":3}`).
		WithResult(int32(5), "Successfully added 2 + 3").
		WithRequest("req-1", 2*time.Millisecond)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO engine_calculations")).
		WithArgs("add", `{"a":2,"b":3}`, "5", true, "Successfully added 2 + 3", "req-1", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(41), createdAt))

	require.NoError(t, repo.Insert(ctx, calc))
	assert.Equal(t, int64(41), calc.ID)
	assert.Equal(t, createdAt, calc.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculationRepository_InsertFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	calc := models.NewCalculation(models.OperationFactorial, `{"n":-1}`).
		WithFailure("Factorial is not defined for negative numbers")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO engine_calculations")).
		WithArgs("factorial", `{"n":-1}`, nil, false, "Factorial is not defined for negative numbers", "", int64(0)).
		WillReturnError(sql.ErrConnDone)

	err := repo.Insert(context.Background(), calc)
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Zero(t, calc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculationRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(calculationRowColumns).
		AddRow(int64(2), "factorial", `{"n":21}`, nil, false, "Factorial for numbers > 20 may cause overflow", nil, int64(0), now).
		AddRow(int64(1), "add", `{"a":1,"b":1}`, "2", true, "Successfully added 1 + 1", "req-a", int64(1), now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id DESC")).
		WithArgs(100, 0).
		WillReturnRows(rows)

	calcs, err := repo.List(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, calcs, 2)

	assert.Equal(t, int64(2), calcs[0].ID)
	assert.Equal(t, models.OperationFactorial, calcs[0].OperationType)
	assert.Nil(t, calcs[0].Result)
	assert.False(t, calcs[0].Success)
	assert.Empty(t, calcs[0].RequestID)

	require.NotNil(t, calcs[1].Result)
	assert.Equal(t, "2", *calcs[1].Result)
	assert.Equal(t, "req-a", calcs[1].RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculationRepository_ListEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM engine_calculations")).
		WithArgs(10, 5).
		WillReturnRows(sqlmock.NewRows(calculationRowColumns))

	calcs, err := repo.List(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.NotNil(t, calcs)
	assert.Empty(t, calcs)
}

func TestCalculationRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(calculationRowColumns).
			AddRow(int64(7), "process-string", `{"text":"hi"}`, "HI", true, "Successfully processed string", nil, int64(0), now))

	calc, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.OperationProcessString, calc.OperationType)
	assert.Equal(t, "HI", *calc.Result)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(calculationRowColumns))

	_, err = repo.GetByID(context.Background(), 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculationRepository_Count(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM engine_calculations")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCalculationRepository_InitSchemaAndHealth(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS engine_calculations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.InitSchema(ctx))

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	require.NoError(t, repo.HealthCheck(ctx))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	err := repo.HealthCheck(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database health check failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}
