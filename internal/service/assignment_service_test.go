package service

import (
	"context"
	"errors"
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
	"github.com/noah-isme/hrd-training-api/pkg/jobs"
)

type mockAssignModuleStore struct {
	modules map[string]*models.Module
	pulled  []string
}

func (m *mockAssignModuleStore) FindByID(ctx context.Context, id string) (*models.Module, error) {
	if mod, ok := m.modules[id]; ok {
		return mod, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockAssignModuleStore) ListActiveByUser(ctx context.Context, userID int64, excludeID string) ([]models.Module, error) {
	var result []models.Module
	for id, mod := range m.modules {
		if id == excludeID || mod.Archived {
			continue
		}
		for _, u := range mod.AssignedUsers {
			if u == userID {
				result = append(result, *mod)
				break
			}
		}
	}
	return result, nil
}

func (m *mockAssignModuleStore) SetAssignedUsers(ctx context.Context, id string, users []int64) error {
	mod, ok := m.modules[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	mod.AssignedUsers = users
	return nil
}

func (m *mockAssignModuleStore) PullAssignedUser(ctx context.Context, id string, userID int64) error {
	mod, ok := m.modules[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	var kept []int64
	for _, u := range mod.AssignedUsers {
		if u != userID {
			kept = append(kept, u)
		}
	}
	mod.AssignedUsers = kept
	m.pulled = append(m.pulled, fmt.Sprintf("%s/%d", id, userID))
	return nil
}

type mockRosterSyncer struct {
	program  *models.CycleProgram
	syncRuns []string
	syncErr  error
}

func (m *mockRosterSyncer) ResolveProgram(ctx context.Context, module *models.Module) (*models.CycleProgram, error) {
	return m.program, nil
}

func (m *mockRosterSyncer) ResetAndSync(ctx context.Context, moduleID string, assignedUserIDs []int64, cycleProgramID string) error {
	m.syncRuns = append(m.syncRuns, moduleID)
	return m.syncErr
}

type mockSyncQueue struct {
	jobs    []jobs.Job
	failing bool
}

func (m *mockSyncQueue) Enqueue(job jobs.Job) error {
	if m.failing {
		return errors.New("queue full")
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func aprilWeek(startDay int) []models.Session {
	return []models.Session{{
		Name: "block",
		Dates: []models.DateRange{{
			Start: time.Date(2026, time.April, startDay, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, time.April, startDay+2, 17, 0, 0, 0, time.UTC),
		}},
	}}
}

func newAssignmentFixture() (*AssignmentService, *mockAssignModuleStore, *mockRosterSyncer, *mockSyncQueue, string, string) {
	target := &models.Module{
		ID:       primitive.NewObjectID(),
		Name:     "Go Fundamentals",
		Sessions: aprilWeek(1),
	}
	// Overlaps the target's dates, so a shared user conflicts.
	clashing := &models.Module{
		ID:            primitive.NewObjectID(),
		Name:          "Kubernetes Basics",
		Sessions:      aprilWeek(2),
		AssignedUsers: []int64{5},
	}
	distant := &models.Module{
		ID:            primitive.NewObjectID(),
		Name:          "SQL Tuning",
		Sessions:      aprilWeek(20),
		AssignedUsers: []int64{5},
	}

	store := &mockAssignModuleStore{modules: map[string]*models.Module{
		target.ID.Hex():   target,
		clashing.ID.Hex(): clashing,
		distant.ID.Hex():  distant,
	}}
	syncer := &mockRosterSyncer{program: &models.CycleProgram{ID: "cycle-1", Type: models.CycleProgramTypeCycle}}
	queue := &mockSyncQueue{}
	schedule := NewScheduleService(NewCacheService(nil, nil, 0, zap.NewNop(), false), zap.NewNop())
	svc := NewAssignmentService(store, schedule, syncer, queue, NewMetricsService(), validator.New(), zap.NewNop())
	return svc, store, syncer, queue, target.ID.Hex(), clashing.ID.Hex()
}

func TestAssignUsersEvictsConflictingRosters(t *testing.T) {
	svc, store, _, queue, targetID, clashingID := newAssignmentFixture()

	result, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{UserIDs: []int64{5}})
	require.NoError(t, err)

	require.Len(t, result.Evicted, 1)
	assert.Equal(t, int64(5), result.Evicted[0].UserID)
	assert.Equal(t, clashingID, result.Evicted[0].FromModuleID)
	assert.Empty(t, store.modules[clashingID].AssignedUsers)
	assert.Equal(t, []int64{5}, result.AssignedUsers)
	assert.True(t, result.SyncQueued)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, SyncJobType, queue.jobs[0].Type)
}

func TestAssignUsersLeavesNonConflictingRosters(t *testing.T) {
	svc, store, _, _, targetID, clashingID := newAssignmentFixture()

	result, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{UserIDs: []int64{5}})
	require.NoError(t, err)

	for id, mod := range store.modules {
		if id == targetID || id == clashingID {
			continue
		}
		assert.Equal(t, []int64{5}, mod.AssignedUsers, "non-overlapping module %s keeps the user", mod.Name)
	}
	assert.Len(t, result.Evicted, 1)
}

func TestAssignUsersSkipsAlreadyAssigned(t *testing.T) {
	svc, store, _, _, targetID, _ := newAssignmentFixture()
	store.modules[targetID].AssignedUsers = []int64{5}

	result, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{UserIDs: []int64{5}})
	require.NoError(t, err)
	assert.Empty(t, result.Evicted, "no eviction scan for users already on the roster")
	assert.Equal(t, []int64{5}, result.AssignedUsers)
	assert.Empty(t, store.pulled)
}

func TestAssignUsersRejectsArchivedModule(t *testing.T) {
	svc, store, _, _, targetID, _ := newAssignmentFixture()
	store.modules[targetID].Archived = true

	_, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{UserIDs: []int64{5}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestAssignUsersUnknownModule(t *testing.T) {
	svc, _, _, _, _, _ := newAssignmentFixture()

	_, err := svc.AssignUsers(context.Background(), primitive.NewObjectID().Hex(), AssignUsersRequest{UserIDs: []int64{5}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignUsersValidatesPayload(t *testing.T) {
	svc, _, _, _, targetID, _ := newAssignmentFixture()

	_, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignUsersFallsBackToSynchronousSync(t *testing.T) {
	svc, _, syncer, queue, targetID, _ := newAssignmentFixture()
	queue.failing = true

	result, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{UserIDs: []int64{9}})
	require.NoError(t, err)
	assert.True(t, result.SyncQueued)
	require.Len(t, syncer.syncRuns, 1)
	assert.Equal(t, targetID, syncer.syncRuns[0])
}

func TestAssignUsersWithoutProgramSkipsSync(t *testing.T) {
	svc, _, syncer, queue, targetID, _ := newAssignmentFixture()
	syncer.program = nil

	result, err := svc.AssignUsers(context.Background(), targetID, AssignUsersRequest{UserIDs: []int64{9}})
	require.NoError(t, err)
	assert.False(t, result.SyncQueued)
	assert.Empty(t, queue.jobs)
	assert.Empty(t, syncer.syncRuns)
}
