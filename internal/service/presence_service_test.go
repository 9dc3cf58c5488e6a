package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
)

type mockModuleDocs struct {
	modules map[string]*models.Module
}

func (m *mockModuleDocs) FindByID(ctx context.Context, id string) (*models.Module, error) {
	if mod, ok := m.modules[id]; ok {
		return mod, nil
	}
	return nil, mongo.ErrNoDocuments
}

type mockUserModuleReader struct {
	byModuleUser map[string]models.UserModule
	byID         map[string]models.UserModule
}

func userModuleKey(moduleID string, userID int64) string {
	return fmt.Sprintf("%s/%d", moduleID, userID)
}

func (m *mockUserModuleReader) FindUserModuleForUser(ctx context.Context, moduleID string, userID int64) (*models.UserModule, error) {
	if um, ok := m.byModuleUser[userModuleKey(moduleID, userID)]; ok {
		return &um, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserModuleReader) FindUserModuleByID(ctx context.Context, id string) (*models.UserModule, error) {
	if um, ok := m.byID[id]; ok {
		return &um, nil
	}
	return nil, sql.ErrNoRows
}

type mockPresenceStore struct {
	records      []models.PresenceRecord
	presentCount int
}

func (m *mockPresenceStore) BulkUpsert(ctx context.Context, records []models.PresenceRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *mockPresenceStore) CountPresent(ctx context.Context, userModuleID string) (int, error) {
	return m.presentCount, nil
}

func (m *mockPresenceStore) ListByUserModule(ctx context.Context, userModuleID string) ([]models.PresenceRecord, error) {
	return m.records, nil
}

func newPresenceFixture(t *testing.T) (*PresenceService, *mockPresenceStore, string, string) {
	t.Helper()

	moduleID := primitive.NewObjectID()
	module := &models.Module{
		ID:   moduleID,
		Name: "Go Fundamentals",
		Sessions: []models.Session{{
			Name: "week one",
			Dates: []models.DateRange{
				{Start: day(2026, time.September, 7), End: day(2026, time.September, 9)},
			},
		}},
		CreatedAt: day(2026, time.August, 1),
		UpdatedAt: day(2026, time.August, 1),
	}

	accepted := models.UserModule{
		ID:             "um-accepted",
		RegistrationID: "reg-1",
		ModuleID:       moduleID.Hex(),
		Status:         models.DecisionStatusAccepted,
	}
	pending := models.UserModule{
		ID:             "um-pending",
		RegistrationID: "reg-2",
		ModuleID:       moduleID.Hex(),
		Status:         models.DecisionStatusPending,
	}

	modules := &mockModuleDocs{modules: map[string]*models.Module{moduleID.Hex(): module}}
	userModules := &mockUserModuleReader{
		byModuleUser: map[string]models.UserModule{
			userModuleKey(moduleID.Hex(), 1): accepted,
			userModuleKey(moduleID.Hex(), 2): pending,
		},
		byID: map[string]models.UserModule{
			"um-accepted": accepted,
			"um-pending":  pending,
		},
	}
	store := &mockPresenceStore{}
	schedule := NewScheduleService(NewCacheService(nil, nil, 0, zap.NewNop(), false), zap.NewNop())
	svc := NewPresenceService(store, userModules, modules, schedule, validator.New(), zap.NewNop())
	return svc, store, moduleID.Hex(), "um-accepted"
}

func TestSubmitPresenceStoresScheduledDates(t *testing.T) {
	svc, store, moduleID, _ := newPresenceFixture(t)

	records, err := svc.SubmitPresence(context.Background(), moduleID, SubmitPresenceRequest{
		Entries: []PresenceEntry{
			{UserID: 1, Date: day(2026, time.September, 7), Status: "present"},
			{UserID: 1, Date: day(2026, time.September, 8), Status: "absent"},
		},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, store.records, 2)
	assert.Equal(t, "um-accepted", store.records[0].UserModuleID)
	assert.Equal(t, models.PresenceStatusPresent, store.records[0].Status)
}

func TestSubmitPresenceAbortsWholeBatchOnUnscheduledDate(t *testing.T) {
	svc, store, moduleID, _ := newPresenceFixture(t)

	_, err := svc.SubmitPresence(context.Background(), moduleID, SubmitPresenceRequest{
		Entries: []PresenceEntry{
			{UserID: 1, Date: day(2026, time.September, 7), Status: "present"},
			{UserID: 1, Date: day(2026, time.September, 20), Status: "present"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.records, "a bad entry keeps the whole batch out")
}

func TestSubmitPresenceRejectsUndecidedEnrollment(t *testing.T) {
	svc, store, moduleID, _ := newPresenceFixture(t)

	_, err := svc.SubmitPresence(context.Background(), moduleID, SubmitPresenceRequest{
		Entries: []PresenceEntry{{UserID: 2, Date: day(2026, time.September, 7), Status: "present"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.records)
}

func TestSubmitPresenceRejectsUnknownUser(t *testing.T) {
	svc, _, moduleID, _ := newPresenceFixture(t)

	_, err := svc.SubmitPresence(context.Background(), moduleID, SubmitPresenceRequest{
		Entries: []PresenceEntry{{UserID: 99, Date: day(2026, time.September, 7), Status: "present"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmitPresenceUnknownModule(t *testing.T) {
	svc, _, _, _ := newPresenceFixture(t)

	_, err := svc.SubmitPresence(context.Background(), primitive.NewObjectID().Hex(), SubmitPresenceRequest{
		Entries: []PresenceEntry{{UserID: 1, Date: day(2026, time.September, 7), Status: "present"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSummaryRecountsAgainstSchedule(t *testing.T) {
	svc, store, _, userModuleID := newPresenceFixture(t)
	store.presentCount = 2

	summary, err := svc.Summary(context.Background(), userModuleID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DaysPresent)
	assert.Equal(t, 3, summary.DaysScheduled)
	assert.InDelta(t, 66.67, summary.Percent, 0.01)
}

func TestSummaryUnknownUserModule(t *testing.T) {
	svc, _, _, _ := newPresenceFixture(t)

	_, err := svc.Summary(context.Background(), "um-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
