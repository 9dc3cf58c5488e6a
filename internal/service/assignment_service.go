package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
	"github.com/noah-isme/hrd-training-api/pkg/jobs"
)

type assignmentModuleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
	ListActiveByUser(ctx context.Context, userID int64, excludeID string) ([]models.Module, error)
	SetAssignedUsers(ctx context.Context, id string, users []int64) error
	PullAssignedUser(ctx context.Context, id string, userID int64) error
}

type rosterSyncer interface {
	ResolveProgram(ctx context.Context, module *models.Module) (*models.CycleProgram, error)
	ResetAndSync(ctx context.Context, moduleID string, assignedUserIDs []int64, cycleProgramID string) error
}

type syncEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AssignUsersRequest is the admin payload adding users to a module roster.
type AssignUsersRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1,dive,gt=0"`
}

// AssignmentService handles admin roster changes: adding users to a module,
// evicting them from schedule-conflicting modules, and triggering the
// cross-store sync for program-linked modules.
type AssignmentService struct {
	modules   assignmentModuleRepository
	schedule  *ScheduleService
	sync      rosterSyncer
	queue     syncEnqueuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(modules assignmentModuleRepository, schedule *ScheduleService, sync rosterSyncer, queue syncEnqueuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{modules: modules, schedule: schedule, sync: sync, queue: queue, metrics: metrics, validator: validate, logger: logger}
}

// AssignUsers adds users to a module's roster. Each newly added user is
// scanned against every other module listing them; conflicting rosters lose
// the user, and the evictions are reported back to the caller rather than
// happening silently. Per-user eviction failures are collected and surfaced
// in the result instead of aborting the assignment.
func (s *AssignmentService) AssignUsers(ctx context.Context, moduleID string, req AssignUsersRequest) (*models.AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if module.Archived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "module is archived")
	}

	current := make(map[int64]bool, len(module.AssignedUsers))
	for _, userID := range module.AssignedUsers {
		current[userID] = true
	}

	result := &models.AssignmentResult{ModuleID: moduleID}
	roster := append([]int64(nil), module.AssignedUsers...)

	for _, userID := range req.UserIDs {
		if current[userID] {
			continue
		}
		evicted, failures := s.evictConflicting(ctx, module, userID)
		result.Evicted = append(result.Evicted, evicted...)
		result.Failures = append(result.Failures, failures...)
		roster = append(roster, userID)
		current[userID] = true
	}

	if err := s.modules.SetAssignedUsers(ctx, moduleID, roster); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module roster")
	}
	result.AssignedUsers = roster
	if s.metrics != nil {
		s.metrics.RecordEvictions(len(result.Evicted))
	}

	program, err := s.sync.ResolveProgram(ctx, module)
	if err != nil {
		return nil, err
	}
	if program != nil {
		result.SyncQueued = s.dispatchSync(ctx, moduleID, roster, program.ID)
	}

	return result, nil
}

// evictConflicting removes the user from every other module whose schedule
// overlaps the target module's. Last write wins; the caller gets the list.
func (s *AssignmentService) evictConflicting(ctx context.Context, module *models.Module, userID int64) ([]models.Eviction, []models.AssignmentFailure) {
	others, err := s.modules.ListActiveByUser(ctx, userID, module.ID.Hex())
	if err != nil {
		return nil, []models.AssignmentFailure{{
			UserID:   userID,
			ModuleID: module.ID.Hex(),
			Reason:   fmt.Sprintf("conflict scan failed: %v", err),
		}}
	}

	var evicted []models.Eviction
	var failures []models.AssignmentFailure
	for _, other := range others {
		if !s.schedule.HasConflict(module.Sessions, other.Sessions) {
			continue
		}
		if err := s.modules.PullAssignedUser(ctx, other.ID.Hex(), userID); err != nil {
			failures = append(failures, models.AssignmentFailure{
				UserID:   userID,
				ModuleID: other.ID.Hex(),
				Reason:   fmt.Sprintf("eviction failed: %v", err),
			})
			continue
		}
		evicted = append(evicted, models.Eviction{UserID: userID, FromModuleID: other.ID.Hex()})
		s.logger.Info("evicted user from conflicting module",
			zap.Int64("user_id", userID),
			zap.String("module_id", module.ID.Hex()),
			zap.String("from_module_id", other.ID.Hex()))
	}
	return evicted, failures
}

// dispatchSync queues a roster sync job, falling back to a synchronous run
// when the queue is unavailable so the stores do not silently diverge.
func (s *AssignmentService) dispatchSync(ctx context.Context, moduleID string, roster []int64, cycleProgramID string) bool {
	payload := SyncJobPayload{ModuleID: moduleID, AssignedUserIDs: roster, CycleProgramID: cycleProgramID}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    SyncJobType,
			Payload: payload,
		})
		if err == nil {
			return true
		}
		s.logger.Warn("sync enqueue failed, running synchronously", zap.String("module_id", moduleID), zap.Error(err))
	}
	if err := s.sync.ResetAndSync(ctx, moduleID, roster, cycleProgramID); err != nil {
		s.logger.Error("synchronous roster sync failed", zap.String("module_id", moduleID), zap.Error(err))
		return false
	}
	return true
}
