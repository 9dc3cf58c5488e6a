package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

// CycleProgramRepository handles persistence of program containers and their
// module link rows.
type CycleProgramRepository struct {
	db *sqlx.DB
}

// NewCycleProgramRepository constructs the repository.
func NewCycleProgramRepository(db *sqlx.DB) *CycleProgramRepository {
	return &CycleProgramRepository{db: db}
}

// FindByID returns a cycle program by its ID.
func (r *CycleProgramRepository) FindByID(ctx context.Context, id string) (*models.CycleProgram, error) {
	const query = `SELECT id, title, type, created_at FROM cycle_programs WHERE id = $1`
	var program models.CycleProgram
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// FindByTitle returns the first cycle program matching the given title.
// Titles are not unique; this lookup exists only for legacy modules that
// reference their program by free text instead of id.
func (r *CycleProgramRepository) FindByTitle(ctx context.Context, title string) (*models.CycleProgram, error) {
	const query = `SELECT id, title, type, created_at FROM cycle_programs WHERE title = $1 ORDER BY created_at LIMIT 1`
	var program models.CycleProgram
	if err := r.db.GetContext(ctx, &program, query, title); err != nil {
		return nil, err
	}
	return &program, nil
}

// Create persists a new cycle program.
func (r *CycleProgramRepository) Create(ctx context.Context, program *models.CycleProgram) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO cycle_programs (id, title, type, created_at) VALUES (:id, :title, :type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create cycle program: %w", err)
	}
	return nil
}

// LinkModule attaches a module document to a program container.
func (r *CycleProgramRepository) LinkModule(ctx context.Context, cycleProgramID, moduleID string, position int) error {
	const query = `INSERT INTO cycle_program_modules (cycle_program_id, module_id, position)
VALUES ($1, $2, $3)
ON CONFLICT (cycle_program_id, module_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, cycleProgramID, moduleID, position); err != nil {
		return fmt.Errorf("link module %s to program %s: %w", moduleID, cycleProgramID, err)
	}
	return nil
}

// ListModuleIDs returns the module ids linked to a program in link order.
func (r *CycleProgramRepository) ListModuleIDs(ctx context.Context, cycleProgramID string) ([]string, error) {
	const query = `SELECT module_id FROM cycle_program_modules WHERE cycle_program_id = $1 ORDER BY position, module_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, cycleProgramID); err != nil {
		return nil, fmt.Errorf("list program modules: %w", err)
	}
	return ids, nil
}
