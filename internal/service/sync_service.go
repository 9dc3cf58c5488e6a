package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
	"github.com/noah-isme/hrd-training-api/pkg/jobs"
)

type syncRegistrationRepository interface {
	ListByProgramAndUsers(ctx context.Context, cycleProgramID string, userIDs []int64) ([]models.Registration, error)
	Create(ctx context.Context, registration *models.Registration) error
	ReplaceUserModules(ctx context.Context, registrationIDs []string, moduleID string) error
	EnsureUserModules(ctx context.Context, registrationIDs []string, moduleID string) error
}

type syncProgramRepository interface {
	FindByID(ctx context.Context, id string) (*models.CycleProgram, error)
	FindByTitle(ctx context.Context, title string) (*models.CycleProgram, error)
}

type syncModuleReader interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

// SyncJobType labels roster sync jobs on the background queue.
const SyncJobType = "roster_sync"

// SyncJobPayload carries one roster sync request through the queue.
type SyncJobPayload struct {
	ModuleID        string
	AssignedUserIDs []int64
	CycleProgramID  string
}

// SyncService reconciles a module's assignedUsers roster (document store)
// with registration and user-module rows (relational store). The two stores
// never share a transaction: a module save and the sync that follows it are
// separate commits, and a failure in between is repaired by re-running the
// sync, either via queue retry or the manual reconcile endpoint.
type SyncService struct {
	registrations syncRegistrationRepository
	programs      syncProgramRepository
	modules       syncModuleReader
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewSyncService constructs the sync service.
func NewSyncService(registrations syncRegistrationRepository, programs syncProgramRepository, modules syncModuleReader, metrics *MetricsService, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{registrations: registrations, programs: programs, modules: modules, metrics: metrics, logger: logger}
}

// ResolveProgram finds the cycle program a module belongs to. Modules carry
// an explicit program id; legacy documents only have a free-text program
// title, which is matched against program titles as a compatibility path.
// Returns nil when the module is not linked to any program.
func (s *SyncService) ResolveProgram(ctx context.Context, module *models.Module) (*models.CycleProgram, error) {
	if module.ProgramID != nil && *module.ProgramID != "" {
		program, err := s.programs.FindByID(ctx, *module.ProgramID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConsistency, fmt.Sprintf("module %s references unknown program %s", module.ID.Hex(), *module.ProgramID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}
		return program, nil
	}

	if module.ProgramTitle == "" {
		return nil, nil
	}
	program, err := s.programs.FindByTitle(ctx, module.ProgramTitle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Legacy title linkage is best-effort: an unmatched title means
			// the module is simply not program-linked.
			s.logger.Warn("program title matched no program",
				zap.String("module_id", module.ID.Hex()),
				zap.String("program_title", module.ProgramTitle))
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve program title")
	}
	return program, nil
}

// ResetAndSync makes the relational store reflect the module's roster:
// find-or-create one pending registration per user, then delete and re-insert
// the user-module rows for this module. Re-running it resets any previously
// decided status for this module back to pending. That reset is long-standing
// product behaviour; Reconcile is the status-preserving alternative.
func (s *SyncService) ResetAndSync(ctx context.Context, moduleID string, assignedUserIDs []int64, cycleProgramID string) error {
	return s.run(ctx, "reset", moduleID, assignedUserIDs, cycleProgramID, s.registrations.ReplaceUserModules)
}

// Reconcile is the idempotent repair variant: it creates missing
// registrations and user-module rows but never touches existing statuses.
func (s *SyncService) Reconcile(ctx context.Context, moduleID string, assignedUserIDs []int64, cycleProgramID string) error {
	return s.run(ctx, "reconcile", moduleID, assignedUserIDs, cycleProgramID, s.registrations.EnsureUserModules)
}

func (s *SyncService) run(ctx context.Context, mode, moduleID string, assignedUserIDs []int64, cycleProgramID string, apply func(context.Context, []string, string) error) (err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSyncRun(mode, err, time.Since(start))
		}
	}()

	if _, err = s.programs.FindByID(ctx, cycleProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "cycle program not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		return err
	}
	if _, err = s.modules.FindByID(ctx, moduleID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = appErrors.Clone(appErrors.ErrConsistency, fmt.Sprintf("module %s is absent from the document store", moduleID))
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
		return err
	}

	existing, err := s.registrations.ListByProgramAndUsers(ctx, cycleProgramID, assignedUserIDs)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
		return err
	}
	byUser := make(map[int64]string, len(existing))
	for _, reg := range existing {
		byUser[reg.UserID] = reg.ID
	}

	registrationIDs := make([]string, 0, len(assignedUserIDs))
	for _, userID := range assignedUserIDs {
		if id, ok := byUser[userID]; ok {
			registrationIDs = append(registrationIDs, id)
			continue
		}
		registration := &models.Registration{
			CycleProgramID: cycleProgramID,
			UserID:         userID,
			Status:         models.DecisionStatusPending,
		}
		if err = s.registrations.Create(ctx, registration); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
			return err
		}
		byUser[userID] = registration.ID
		registrationIDs = append(registrationIDs, registration.ID)
	}

	if err = apply(ctx, registrationIDs, moduleID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync user modules")
		return err
	}

	s.logger.Info("roster sync completed",
		zap.String("mode", mode),
		zap.String("module_id", moduleID),
		zap.String("cycle_program_id", cycleProgramID),
		zap.Int("users", len(assignedUserIDs)))
	return nil
}

// SyncModule runs a roster sync for one module from its stored roster. The
// manual endpoints use it: reset for a full rebuild, reconcile for repair.
func (s *SyncService) SyncModule(ctx context.Context, moduleID string, reconcile bool) error {
	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	program, err := s.ResolveProgram(ctx, module)
	if err != nil {
		return err
	}
	if program == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "module is not linked to a program")
	}

	if reconcile {
		return s.Reconcile(ctx, moduleID, module.AssignedUsers, program.ID)
	}
	return s.ResetAndSync(ctx, moduleID, module.AssignedUsers, program.ID)
}

// HandleJob adapts the queue's job shape to ResetAndSync. Assignment-driven
// syncs go through the queue so a relational-store hiccup after a module save
// is retried instead of leaving the stores diverged.
func (s *SyncService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(SyncJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}
	return s.ResetAndSync(ctx, payload.ModuleID, payload.AssignedUserIDs, payload.CycleProgramID)
}
