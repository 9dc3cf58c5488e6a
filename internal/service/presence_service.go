package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
)

type presenceModuleReader interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

type presenceRegistrationReader interface {
	FindUserModuleForUser(ctx context.Context, moduleID string, userID int64) (*models.UserModule, error)
	FindUserModuleByID(ctx context.Context, id string) (*models.UserModule, error)
}

type presenceRepository interface {
	BulkUpsert(ctx context.Context, records []models.PresenceRecord) error
	CountPresent(ctx context.Context, userModuleID string) (int, error)
	ListByUserModule(ctx context.Context, userModuleID string) ([]models.PresenceRecord, error)
}

// PresenceEntry is one attendance fact inside a batch submission.
type PresenceEntry struct {
	UserID int64     `json:"user_id" validate:"required,gt=0"`
	Date   time.Time `json:"date" validate:"required"`
	Status string    `json:"status" validate:"required,oneof=present absent"`
}

// SubmitPresenceRequest is a batch of attendance entries for one module.
type SubmitPresenceRequest struct {
	Entries []PresenceEntry `json:"entries" validate:"required,min=1,dive"`
}

// PresenceService validates and records attendance. A batch is all-or-nothing:
// every entry is checked against the module's computed date set and the
// learner's accepted enrollment before any row is written.
type PresenceService struct {
	presence      presenceRepository
	registrations presenceRegistrationReader
	modules       presenceModuleReader
	schedule      *ScheduleService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPresenceService constructs the presence service.
func NewPresenceService(presence presenceRepository, registrations presenceRegistrationReader, modules presenceModuleReader, schedule *ScheduleService, validate *validator.Validate, logger *zap.Logger) *PresenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{
		presence:      presence,
		registrations: registrations,
		modules:       modules,
		schedule:      schedule,
		validator:     validate,
		logger:        logger,
	}
}

// SubmitPresence records a batch of attendance entries for a module. Repeated
// submissions for the same (user module, date) overwrite the stored status.
func (s *PresenceService) SubmitPresence(ctx context.Context, moduleID string, req SubmitPresenceRequest) ([]models.PresenceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid presence payload")
	}

	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	schedule := s.schedule.ScheduleForModule(ctx, module)

	records := make([]models.PresenceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		userModule, err := s.registrations.FindUserModuleForUser(ctx, moduleID, entry.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %d is not enrolled in module", entry.UserID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if userModule.Status != models.DecisionStatusAccepted {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("enrollment for user %d is not accepted", entry.UserID))
		}
		if !schedule.ContainsDate(entry.Date) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %s is not a scheduled day", entry.Date.Format("2006-01-02")))
		}
		records = append(records, models.PresenceRecord{
			UserModuleID: userModule.ID,
			Date:         dayOf(entry.Date),
			Status:       models.PresenceStatus(entry.Status),
		})
	}

	if err := s.presence.BulkUpsert(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record presence")
	}

	s.logger.Info("presence recorded",
		zap.String("module_id", moduleID),
		zap.Int("entries", len(records)))

	return records, nil
}

// Summary recounts stored presence rows for one user module and relates them
// to the module's current scheduled day count.
func (s *PresenceService) Summary(ctx context.Context, userModuleID string) (*models.PresenceSummary, error) {
	userModule, err := s.registrations.FindUserModuleByID(ctx, userModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user module")
	}

	module, err := s.modules.FindByID(ctx, userModule.ModuleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrConsistency, fmt.Sprintf("module %s is absent from the document store", userModule.ModuleID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	schedule := s.schedule.ScheduleForModule(ctx, module)

	present, err := s.presence.CountPresent(ctx, userModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count presence")
	}

	summary := &models.PresenceSummary{
		UserModuleID:  userModuleID,
		DaysPresent:   present,
		DaysScheduled: schedule.Count,
	}
	if schedule.Count > 0 {
		summary.Percent = float64(present) / float64(schedule.Count) * 100
	}
	return summary, nil
}

// History returns the stored presence rows for one user module.
func (s *PresenceService) History(ctx context.Context, userModuleID string) ([]models.PresenceRecord, error) {
	if _, err := s.registrations.FindUserModuleByID(ctx, userModuleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user module")
	}
	records, err := s.presence.ListByUserModule(ctx, userModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list presence")
	}
	return records, nil
}
