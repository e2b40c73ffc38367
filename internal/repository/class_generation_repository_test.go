package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-builder-api/internal/models"
)

func newClassGenerationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var generationRowColumns = []string{"id", "name", "version", "seed", "student_count", "class_count", "meta", "created_by", "created_at"}

func TestClassGenerationRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newClassGenerationRepoMock(t)
	defer cleanup()
	repo := NewClassGenerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM class_generations WHERE name = $1")).
		WithArgs("2027 intake").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_generations")).
		WithArgs(sqlmock.AnyArg(), "2027 intake", 3, int64(42), 40, 2, sqlmock.AnyArg(), "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	gen := &models.ClassGeneration{
		Name:         "  2027 intake ",
		Seed:         42,
		StudentCount: 40,
		ClassCount:   2,
		CreatedBy:    "user-1",
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, gen))
	assert.Equal(t, 3, gen.Version)
	assert.NotEmpty(t, gen.ID)
	assert.Equal(t, types.JSONText(`{}`), gen.Meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassGenerationRepositoryCreateVersionedRequiresName(t *testing.T) {
	db, _, cleanup := newClassGenerationRepoMock(t)
	defer cleanup()
	repo := NewClassGenerationRepository(db)

	assert.Error(t, repo.CreateVersioned(context.Background(), nil, &models.ClassGeneration{Name: " "}))
	assert.Error(t, repo.CreateVersioned(context.Background(), nil, nil))
}

func TestClassGenerationRepositoryList(t *testing.T) {
	db, mock, cleanup := newClassGenerationRepoMock(t)
	defer cleanup()
	repo := NewClassGenerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_generations WHERE name = $1")).
		WithArgs("2027 intake").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_generations WHERE name = $1 ORDER BY created_at DESC, version DESC LIMIT $2 OFFSET $3")).
		WithArgs("2027 intake", 2, 2).
		WillReturnRows(sqlmock.NewRows(generationRowColumns).
			AddRow("gen-3", "2027 intake", 3, 7, 40, 2, `{}`, "user-1", time.Now()).
			AddRow("gen-2", "2027 intake", 2, 6, 40, 2, `{}`, "user-1", time.Now()))

	list, total, err := repo.List(context.Background(), models.ClassGenerationFilter{Name: "2027 intake", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassGenerationRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newClassGenerationRepoMock(t)
	defer cleanup()
	repo := NewClassGenerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_generations")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_generations ORDER BY created_at DESC, version DESC LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(generationRowColumns))

	list, total, err := repo.List(context.Background(), models.ClassGenerationFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassGenerationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newClassGenerationRepoMock(t)
	defer cleanup()
	repo := NewClassGenerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_generations WHERE id = $1")).
		WithArgs("gen-1").
		WillReturnRows(sqlmock.NewRows(generationRowColumns).
			AddRow("gen-1", "2027 intake", 1, 42, 40, 2, `{"seed":42}`, "user-1", time.Now()))

	gen, err := repo.FindByID(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), gen.Seed)
	assert.JSONEq(t, `{"seed":42}`, gen.Meta.String())

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_generations WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassGenerationRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newClassGenerationRepoMock(t)
	defer cleanup()
	repo := NewClassGenerationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_generations WHERE id = $1")).
		WithArgs("gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "gen-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_generations WHERE id = $1")).
		WithArgs("gen-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "gen-2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
