package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

// RegistrationRepository handles persistence of registrations and their
// per-module records. Every multi-row mutation runs in one transaction so
// decision cascades and roster syncs are atomic.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT id, cycle_program_id, user_id, status, created_at, updated_at FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindByProgramAndUser returns the registration for a (program, user) pair.
func (r *RegistrationRepository) FindByProgramAndUser(ctx context.Context, cycleProgramID string, userID int64) (*models.Registration, error) {
	const query = `SELECT id, cycle_program_id, user_id, status, created_at, updated_at
FROM registrations WHERE cycle_program_id = $1 AND user_id = $2`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, cycleProgramID, userID); err != nil {
		return nil, err
	}
	return &registration, nil
}

// ListByProgramAndUsers returns registrations for the given users of one
// program, chunked to keep parameter counts bounded.
func (r *RegistrationRepository) ListByProgramAndUsers(ctx context.Context, cycleProgramID string, userIDs []int64) ([]models.Registration, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const chunkSize = 100
	var registrations []models.Registration
	for start := 0; start < len(userIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		chunk := userIDs[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, cycleProgramID)
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, id)
		}
		query := fmt.Sprintf(`SELECT id, cycle_program_id, user_id, status, created_at, updated_at
FROM registrations WHERE cycle_program_id = $1 AND user_id IN (%s)`, strings.Join(placeholders, ","))
		var part []models.Registration
		if err := r.db.SelectContext(ctx, &part, query, args...); err != nil {
			return nil, fmt.Errorf("list registrations: %w", err)
		}
		registrations = append(registrations, part...)
	}
	return registrations, nil
}

// Create persists a new registration row.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	fillRegistrationDefaults(registration)
	const query = `INSERT INTO registrations (id, cycle_program_id, user_id, status, created_at, updated_at)
VALUES (:id, :cycle_program_id, :user_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// CreateWithModules persists a registration together with one pending
// per-module record per module id, atomically.
func (r *RegistrationRepository) CreateWithModules(ctx context.Context, registration *models.Registration, moduleIDs []string) error {
	fillRegistrationDefaults(registration)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create registration: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const regQuery = `INSERT INTO registrations (id, cycle_program_id, user_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, regQuery, registration.ID, registration.CycleProgramID, registration.UserID,
		registration.Status, registration.CreatedAt, registration.UpdatedAt); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	if err := insertPendingUserModules(ctx, tx, []string{registration.ID}, moduleIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create registration: %w", err)
	}
	commit = true
	return nil
}

// ListUserModules returns the per-module records under a registration.
func (r *RegistrationRepository) ListUserModules(ctx context.Context, registrationID string) ([]models.UserModule, error) {
	const query = `SELECT id, registration_id, module_id, status, created_at, updated_at
FROM user_modules WHERE registration_id = $1 ORDER BY created_at, module_id`
	var userModules []models.UserModule
	if err := r.db.SelectContext(ctx, &userModules, query, registrationID); err != nil {
		return nil, fmt.Errorf("list user modules: %w", err)
	}
	return userModules, nil
}

// FindUserModuleByID returns one per-module record.
func (r *RegistrationRepository) FindUserModuleByID(ctx context.Context, id string) (*models.UserModule, error) {
	const query = `SELECT id, registration_id, module_id, status, created_at, updated_at FROM user_modules WHERE id = $1`
	var userModule models.UserModule
	if err := r.db.GetContext(ctx, &userModule, query, id); err != nil {
		return nil, err
	}
	return &userModule, nil
}

// FindUserModuleForUser returns the per-module record for a (user, module)
// pair by joining through the owning registration.
func (r *RegistrationRepository) FindUserModuleForUser(ctx context.Context, moduleID string, userID int64) (*models.UserModule, error) {
	const query = `SELECT um.id, um.registration_id, um.module_id, um.status, um.created_at, um.updated_at
FROM user_modules um
JOIN registrations reg ON reg.id = um.registration_id
WHERE um.module_id = $1 AND reg.user_id = $2
ORDER BY um.updated_at DESC LIMIT 1`
	var userModule models.UserModule
	if err := r.db.GetContext(ctx, &userModule, query, moduleID, userID); err != nil {
		return nil, err
	}
	return &userModule, nil
}

// DecideModules applies a vector of per-module statuses and the derived
// aggregate status in one transaction. An unknown module id under the
// registration aborts the whole decision.
func (r *RegistrationRepository) DecideModules(ctx context.Context, registrationID string, statuses map[string]models.DecisionStatus, aggregate models.DecisionStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decide registration: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const moduleQuery = `UPDATE user_modules SET status = $3, updated_at = $4 WHERE registration_id = $1 AND module_id = $2`
	for moduleID, status := range statuses {
		result, err := tx.ExecContext(ctx, moduleQuery, registrationID, moduleID, status, now)
		if err != nil {
			return fmt.Errorf("update user module %s: %w", moduleID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update user module %s: %w", moduleID, err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}

	if err := updateRegistrationStatus(ctx, tx, registrationID, aggregate, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decide registration: %w", err)
	}
	commit = true
	return nil
}

// DecideCascade applies one status to the registration and every per-module
// record under it in one transaction.
func (r *RegistrationRepository) DecideCascade(ctx context.Context, registrationID string, status models.DecisionStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cascade decision: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const moduleQuery = `UPDATE user_modules SET status = $2, updated_at = $3 WHERE registration_id = $1`
	if _, err := tx.ExecContext(ctx, moduleQuery, registrationID, status, now); err != nil {
		return fmt.Errorf("cascade user modules: %w", err)
	}

	if err := updateRegistrationStatus(ctx, tx, registrationID, status, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cascade decision: %w", err)
	}
	commit = true
	return nil
}

// ReplaceUserModules deletes every per-module record for (registrations,
// module) and re-inserts fresh pending rows, atomically. Any previously
// decided status for this module is reset to pending; that reset is the
// documented behaviour of the roster sync.
func (r *RegistrationRepository) ReplaceUserModules(ctx context.Context, registrationIDs []string, moduleID string) error {
	if len(registrationIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace user modules: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	placeholders := make([]string, len(registrationIDs))
	args := make([]interface{}, 0, len(registrationIDs)+1)
	args = append(args, moduleID)
	for i, id := range registrationIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	deleteQuery := fmt.Sprintf(`DELETE FROM user_modules WHERE module_id = $1 AND registration_id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("delete user modules for module %s: %w", moduleID, err)
	}

	if err := insertPendingUserModules(ctx, tx, registrationIDs, []string{moduleID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace user modules: %w", err)
	}
	commit = true
	return nil
}

// EnsureUserModules inserts pending rows for (registrations, module) pairs
// that do not exist yet and leaves existing rows, including their decided
// statuses, untouched.
func (r *RegistrationRepository) EnsureUserModules(ctx context.Context, registrationIDs []string, moduleID string) error {
	if len(registrationIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ensure user modules: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if err := insertPendingUserModules(ctx, tx, registrationIDs, []string{moduleID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ensure user modules: %w", err)
	}
	commit = true
	return nil
}

func fillRegistrationDefaults(registration *models.Registration) {
	now := time.Now().UTC()
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.Status == "" {
		registration.Status = models.DecisionStatusPending
	}
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
}

func updateRegistrationStatus(ctx context.Context, tx *sqlx.Tx, registrationID string, status models.DecisionStatus, now time.Time) error {
	const query = `UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, registrationID, status, now)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertPendingUserModules(ctx context.Context, tx *sqlx.Tx, registrationIDs, moduleIDs []string) error {
	const query = `INSERT INTO user_modules (id, registration_id, module_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (registration_id, module_id) DO NOTHING`
	now := time.Now().UTC()
	for _, registrationID := range registrationIDs {
		for _, moduleID := range moduleIDs {
			if _, err := tx.ExecContext(ctx, query, uuid.NewString(), registrationID, moduleID,
				models.DecisionStatusPending, now, now); err != nil {
				return fmt.Errorf("insert user module %s/%s: %w", registrationID, moduleID, err)
			}
		}
	}
	return nil
}
