package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
)

// CalculationRepository keeps calculations in process memory
type CalculationRepository struct {
	mu     sync.RWMutex
	nextID int64
	calcs  []models.Calculation
	now    func() time.Time
}

// NewCalculationRepository creates an empty in-memory calculation store
func NewCalculationRepository() *CalculationRepository {
	return &CalculationRepository{
		nextID: 1,
		now:    time.Now,
	}
}

// Insert assigns the next id and timestamp and stores a copy
func (r *CalculationRepository) Insert(ctx context.Context, calc *models.Calculation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	calc.ID = r.nextID
	calc.CreatedAt = r.now().UTC()
	r.nextID++
	r.calcs = append(r.calcs, cloneCalculation(calc))
	return nil
}

// GetByID retrieves a calculation by ID
func (r *CalculationRepository) GetByID(ctx context.Context, id int64) (*models.Calculation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.calcs {
		if r.calcs[i].ID == id {
			c := cloneCalculation(&r.calcs[i])
			return &c, nil
		}
	}
	return nil, fmt.Errorf("calculation %d: %w", id, repositories.ErrNotFound)
}

// List returns calculations newest first
func (r *CalculationRepository) List(ctx context.Context, limit, offset int) ([]*models.Calculation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	out := make([]*models.Calculation, 0)
	// Stored in id order, so walking backwards yields newest first.
	for i := len(r.calcs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		c := cloneCalculation(&r.calcs[i])
		out = append(out, &c)
	}
	return out, nil
}

// Count returns the number of stored calculations
func (r *CalculationRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.calcs)), nil
}

// InitSchema is a no-op for the in-memory store
func (r *CalculationRepository) InitSchema(ctx context.Context) error {
	return nil
}

// HealthCheck always succeeds
func (r *CalculationRepository) HealthCheck(ctx context.Context) error {
	return nil
}

func cloneCalculation(c *models.Calculation) models.Calculation {
	out := *c
	if c.Result != nil {
		v := *c.Result
		out.Result = &v
	}
	return out
}

var _ repositories.CalculationRepository = (*CalculationRepository)(nil)
