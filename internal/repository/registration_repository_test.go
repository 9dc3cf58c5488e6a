package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func registrationRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "cycle_program_id", "user_id", "status", "created_at", "updated_at"})
	for i, id := range ids {
		rows.AddRow(id, "cycle-1", int64(i+1), models.DecisionStatusPending, time.Now(), time.Now())
	}
	return rows
}

func TestRegistrationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, cycle_program_id, user_id, status, created_at, updated_at FROM registrations WHERE id = $1")).
		WithArgs("reg-1").
		WillReturnRows(registrationRows("reg-1"))

	registration, err := repo.FindByID(context.Background(), "reg-1")
	require.NoError(t, err)
	require.Equal(t, "reg-1", registration.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery("SELECT id, cycle_program_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRegistrationRepositoryCreateWithModules(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_modules").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_modules").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	registration := &models.Registration{CycleProgramID: "cycle-1", UserID: 7}
	err := repo.CreateWithModules(context.Background(), registration, []string{"mod-a", "mod-b"})
	require.NoError(t, err)
	require.NotEmpty(t, registration.ID)
	require.Equal(t, models.DecisionStatusPending, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateWithModulesRollsBack(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_modules").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.CreateWithModules(context.Background(), &models.Registration{CycleProgramID: "cycle-1", UserID: 7}, []string{"mod-a"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDecideModules(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_modules SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE registrations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DecideModules(context.Background(), "reg-1",
		map[string]models.DecisionStatus{"mod-a": models.DecisionStatusAccepted},
		models.DecisionStatusPending)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDecideModulesUnknownModule(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_modules SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DecideModules(context.Background(), "reg-1",
		map[string]models.DecisionStatus{"mod-miss": models.DecisionStatusAccepted},
		models.DecisionStatusPending)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDecideCascade(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_modules SET status").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE registrations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DecideCascade(context.Background(), "reg-1", models.DecisionStatusAccepted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryReplaceUserModules(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_modules").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO user_modules").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_modules").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceUserModules(context.Background(), []string{"reg-1", "reg-2"}, "mod-a")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryReplaceUserModulesEmptyInput(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	err := repo.ReplaceUserModules(context.Background(), nil, "mod-a")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryEnsureUserModules(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_modules").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.EnsureUserModules(context.Background(), []string{"reg-1"}, "mod-a")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListByProgramAndUsers(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery("SELECT id, cycle_program_id, user_id, status, created_at, updated_at").
		WithArgs("cycle-1", int64(1), int64(2)).
		WillReturnRows(registrationRows("reg-1", "reg-2"))

	registrations, err := repo.ListByProgramAndUsers(context.Background(), "cycle-1", []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, registrations, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindUserModuleForUser(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "registration_id", "module_id", "status", "created_at", "updated_at"}).
		AddRow("um-1", "reg-1", "mod-a", models.DecisionStatusAccepted, time.Now(), time.Now())
	mock.ExpectQuery("SELECT um.id, um.registration_id").
		WithArgs("mod-a", int64(7)).
		WillReturnRows(rows)

	userModule, err := repo.FindUserModuleForUser(context.Background(), "mod-a", 7)
	require.NoError(t, err)
	require.Equal(t, "um-1", userModule.ID)
	require.Equal(t, models.DecisionStatusAccepted, userModule.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
