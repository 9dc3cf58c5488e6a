package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
)

type enrollmentRegistrationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindByProgramAndUser(ctx context.Context, cycleProgramID string, userID int64) (*models.Registration, error)
	CreateWithModules(ctx context.Context, registration *models.Registration, moduleIDs []string) error
	ListUserModules(ctx context.Context, registrationID string) ([]models.UserModule, error)
	DecideModules(ctx context.Context, registrationID string, statuses map[string]models.DecisionStatus, aggregate models.DecisionStatus) error
	DecideCascade(ctx context.Context, registrationID string, status models.DecisionStatus) error
}

type enrollmentProgramRepository interface {
	FindByID(ctx context.Context, id string) (*models.CycleProgram, error)
	ListModuleIDs(ctx context.Context, cycleProgramID string) ([]string, error)
}

type enrollmentModuleReader interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// RegisterRequest is a learner's enrollment payload against a cycle program.
type RegisterRequest struct {
	UserID            int64    `json:"user_id" validate:"required,gt=0"`
	SelectedModuleIDs []string `json:"selected_module_ids" validate:"omitempty,dive,required"`
}

// DecideRequest carries an admin decision. Either Status cascades to every
// module record, or ModuleStatuses decides modules individually and the
// registration status is re-derived from the full vector.
type DecideRequest struct {
	Status         string            `json:"status" validate:"omitempty,decision_status"`
	ModuleStatuses map[string]string `json:"module_statuses" validate:"omitempty,dive,decision_status"`
}

// EnrollmentService materializes registrations and runs the acceptance state
// machine: pending module records move to accepted or rejected, and the
// registration aggregate follows the all-accepted / all-rejected rule.
type EnrollmentService struct {
	registrations enrollmentRegistrationRepository
	programs      enrollmentProgramRepository
	modules       enrollmentModuleReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(registrations enrollmentRegistrationRepository, programs enrollmentProgramRepository, modules enrollmentModuleReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EnrollmentService{registrations: registrations, programs: programs, modules: modules, validator: validate, logger: logger}
	svc.validator.RegisterValidation("decision_status", func(fl validator.FieldLevel) bool {
		status := models.DecisionStatus(fl.Field().String())
		return status.Decided()
	})
	return svc
}

// RegisterToProgram creates one registration with pending module records:
// every linked module for a cycle, the learner's selection for a program.
func (s *EnrollmentService) RegisterToProgram(ctx context.Context, cycleProgramID string, req RegisterRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	program, err := s.programs.FindByID(ctx, cycleProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	if _, err := s.registrations.FindByProgramAndUser(ctx, cycleProgramID, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already registered to program")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration")
	}

	moduleIDs, err := s.resolveModuleIDs(ctx, program, req.SelectedModuleIDs)
	if err != nil {
		return nil, err
	}

	registration := &models.Registration{
		CycleProgramID: cycleProgramID,
		UserID:         req.UserID,
		Status:         models.DecisionStatusPending,
	}
	if err := s.registrations.CreateWithModules(ctx, registration, moduleIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	s.logger.Info("registration created",
		zap.String("registration_id", registration.ID),
		zap.String("cycle_program_id", cycleProgramID),
		zap.Int64("user_id", req.UserID),
		zap.Int("modules", len(moduleIDs)))

	return s.detail(ctx, registration.ID)
}

// DecideRegistration applies an admin decision. Both shapes run atomically
// over the registration row and every affected module record.
func (s *EnrollmentService) DecideRegistration(ctx context.Context, registrationID string, req DecideRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if req.Status == "" && len(req.ModuleStatuses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision requires a status or module statuses")
	}

	if _, err := s.registrations.FindByID(ctx, registrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	if len(req.ModuleStatuses) > 0 {
		if err := s.decideVector(ctx, registrationID, req.ModuleStatuses); err != nil {
			return nil, err
		}
		return s.detail(ctx, registrationID)
	}

	if err := s.registrations.DecideCascade(ctx, registrationID, models.DecisionStatus(req.Status)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}
	return s.detail(ctx, registrationID)
}

// GetRegistration returns a registration with its module records.
func (s *EnrollmentService) GetRegistration(ctx context.Context, registrationID string) (*models.RegistrationDetail, error) {
	if _, err := s.registrations.FindByID(ctx, registrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return s.detail(ctx, registrationID)
}

func (s *EnrollmentService) resolveModuleIDs(ctx context.Context, program *models.CycleProgram, selected []string) ([]string, error) {
	linked, err := s.programs.ListModuleIDs(ctx, program.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program modules")
	}
	if len(linked) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "program has no modules")
	}

	var moduleIDs []string
	switch program.Type {
	case models.CycleProgramTypeCycle:
		// Every linked module is mandatory for a cycle.
		moduleIDs = linked
	case models.CycleProgramTypeProgram:
		if len(selected) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "program registration requires selected modules")
		}
		linkedSet := make(map[string]bool, len(linked))
		for _, id := range linked {
			linkedSet[id] = true
		}
		seen := make(map[string]bool, len(selected))
		for _, id := range selected {
			if !linkedSet[id] {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("module %s is not part of program", id))
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			moduleIDs = append(moduleIDs, id)
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrInternal, "unknown program type")
	}

	existing, err := s.modules.ExistingIDs(ctx, moduleIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check modules")
	}
	for _, id := range moduleIDs {
		if !existing[id] {
			return nil, appErrors.Clone(appErrors.ErrConsistency, fmt.Sprintf("module %s is absent from the document store", id))
		}
	}
	return moduleIDs, nil
}

func (s *EnrollmentService) decideVector(ctx context.Context, registrationID string, raw map[string]string) error {
	userModules, err := s.registrations.ListUserModules(ctx, registrationID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list user modules")
	}

	current := make(map[string]models.DecisionStatus, len(userModules))
	for _, um := range userModules {
		current[um.ModuleID] = um.Status
	}

	updates := make(map[string]models.DecisionStatus, len(raw))
	for moduleID, status := range raw {
		if _, ok := current[moduleID]; !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user module for module %s not found", moduleID))
		}
		updates[moduleID] = models.DecisionStatus(status)
		current[moduleID] = models.DecisionStatus(status)
	}

	final := make([]models.DecisionStatus, 0, len(current))
	for _, status := range current {
		final = append(final, status)
	}
	aggregate := models.AggregateDecision(final)

	if err := s.registrations.DecideModules(ctx, registrationID, updates, aggregate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user module not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}
	return nil
}

func (s *EnrollmentService) detail(ctx context.Context, registrationID string) (*models.RegistrationDetail, error) {
	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	userModules, err := s.registrations.ListUserModules(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user modules")
	}
	return &models.RegistrationDetail{Registration: *registration, Modules: userModules}, nil
}
