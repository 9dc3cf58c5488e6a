package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
)

type moduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

// ModuleService exposes module reads, computed schedules and pairwise
// conflict checks.
type ModuleService struct {
	modules  moduleReader
	schedule *ScheduleService
	logger   *zap.Logger
}

// NewModuleService constructs the module service.
func NewModuleService(modules moduleReader, schedule *ScheduleService, logger *zap.Logger) *ModuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleService{modules: modules, schedule: schedule, logger: logger}
}

// GetModule loads one module by id.
func (s *ModuleService) GetModule(ctx context.Context, moduleID string) (*models.Module, error) {
	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

// Schedule returns the computed date set for one module.
func (s *ModuleService) Schedule(ctx context.Context, moduleID string) (*models.ModuleSchedule, error) {
	module, err := s.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	schedule := s.schedule.ScheduleForModule(ctx, module)
	return &schedule, nil
}

// Conflicts checks two modules' sessions for overlapping date ranges.
func (s *ModuleService) Conflicts(ctx context.Context, moduleID, otherID string) (*models.ConflictReport, error) {
	module, err := s.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	other, err := s.GetModule(ctx, otherID)
	if err != nil {
		return nil, err
	}
	return &models.ConflictReport{
		ModuleID:      moduleID,
		OtherModuleID: otherID,
		Conflict:      s.schedule.HasConflict(module.Sessions, other.Sessions),
	}, nil
}
