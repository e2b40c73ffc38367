package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-builder-api/internal/allocation"
	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
)

type generationRepoStub struct {
	created   []*models.ClassGeneration
	createErr error
	found     *models.ClassGeneration
	deleteErr error
	items     []models.ClassGeneration
}

func (s *generationRepoStub) CreateVersioned(_ context.Context, exec sqlx.ExtContext, gen *models.ClassGeneration) error {
	if exec == nil {
		return errors.New("exec required")
	}
	if s.createErr != nil {
		return s.createErr
	}
	gen.ID = fmt.Sprintf("gen-%d", len(s.created)+1)
	gen.Version = len(s.created) + 1
	s.created = append(s.created, gen)
	return nil
}

func (s *generationRepoStub) List(_ context.Context, filter models.ClassGenerationFilter) ([]models.ClassGeneration, int, error) {
	return s.items, len(s.items), nil
}

func (s *generationRepoStub) FindByID(_ context.Context, id string) (*models.ClassGeneration, error) {
	if s.found == nil || s.found.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.found, nil
}

func (s *generationRepoStub) Delete(_ context.Context, id string) error {
	return s.deleteErr
}

type placementRepoStub struct {
	inserted  []models.ClassPlacement
	insertErr error
	rows      []models.ClassPlacement
}

func (s *placementRepoStub) InsertBatch(_ context.Context, _ sqlx.ExtContext, placements []models.ClassPlacement) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, placements...)
	return nil
}

func (s *placementRepoStub) ListByGeneration(_ context.Context, generationID string) ([]models.ClassPlacement, error) {
	return s.rows, nil
}

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string][]byte{}
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(context.Context, string) error { return nil }

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// rosterInputs builds six students in each of 3A/3B and 4A.
func rosterInputs() []dto.StudentInput {
	levels := []string{"High", "Average", "Low"}
	genders := []string{"Female", "Male"}
	var out []dto.StudentInput
	for i := 0; i < 12; i++ {
		class := "3A"
		switch {
		case i >= 6:
			class = "4A"
		case i >= 3:
			class = "3B"
		}
		out = append(out, dto.StudentInput{
			ID:        fmt.Sprintf("s%02d", i),
			FirstName: fmt.Sprintf("First%02d", i),
			Surname:   fmt.Sprintf("Last%02d", i),
			Class:     class,
			Gender:    genders[i%2],
			Academic:  levels[i%3],
			Behaviour: levels[(i+1)%3],
		})
	}
	return out
}

func seedPtr(v int64) *int64 { return &v }

type classBuilderFixture struct {
	generations *generationRepoStub
	placements  *placementRepoStub
	tx          txProvider
	cache       *CacheService
}

func newClassBuilderService(t *testing.T, fx classBuilderFixture) *ClassBuilderService {
	t.Helper()
	cfg := ClassBuilderConfig{DefaultMaxSize: 30, MaxStudents: 100, ProposalTTL: time.Hour, ParallelPools: true}
	if fx.generations == nil {
		return NewClassBuilderService(nil, nil, nil, fx.cache, NewMetricsService(), nil, zap.NewNop(), cfg)
	}
	return NewClassBuilderService(fx.generations, fx.placements, fx.tx, fx.cache, NewMetricsService(), nil, zap.NewNop(), cfg)
}

func groupSizes(groups []*allocation.Group) map[string][]int {
	out := map[string][]int{}
	for _, g := range groups {
		for _, c := range g.Classes {
			out[g.Name] = append(out[g.Name], c.Size())
		}
	}
	return out
}

func locate(groups []*allocation.Group, studentID string) (string, int) {
	for _, g := range groups {
		for i, c := range g.Classes {
			if c.IndexOf(studentID) >= 0 {
				return g.Name, i
			}
		}
	}
	return "", -1
}

func TestClassBuilderGenerateStraightClasses(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3", "4"},
		TotalClasses: 4,
		ClassSize:    dto.ClassSize{Max: 3},
		Seed:         seedPtr(42),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Equal(t, int64(42), resp.Seed)
	assert.Equal(t, map[string][]int{
		"Straight Year 3": {3, 3},
		"Straight Year 4": {3, 3},
	}, groupSizes(resp.Groups))
	assert.Empty(t, resp.UnplacedStudentIDs)
	assert.Equal(t, allocation.DefaultWeights(), resp.Settings.Weights)
}

func TestClassBuilderGenerateIsReproducibleForSeed(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})
	req := dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3", "4"},
		TotalClasses: 3,
		ClassSize:    dto.ClassSize{Max: 6},
		Seed:         seedPtr(7),
	}

	first, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.ProposalID, second.ProposalID)
	for _, in := range req.Students {
		g1, c1 := locate(first.Groups, in.ID)
		g2, c2 := locate(second.Groups, in.ID)
		assert.Equal(t, g1, g2, in.ID)
		assert.Equal(t, c1, c2, in.ID)
	}
}

func TestClassBuilderGenerateCompositeTakesLeftovers(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:         rosterInputs(),
		YearLevels:       []string{"3", "4"},
		TotalClasses:     3,
		CompositeClasses: 1,
		ClassSize:        dto.ClassSize{Max: 4},
		Seed:             seedPtr(1),
	})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 3)
	assert.Equal(t, "Composite 3/4", resp.Groups[2].Name)
	assert.Equal(t, map[string][]int{
		"Straight Year 3": {4},
		"Straight Year 4": {4},
		"Composite 3/4":   {4},
	}, groupSizes(resp.Groups))
	assert.Empty(t, resp.UnplacedStudentIDs)
}

func TestClassBuilderGenerateReportsUnplacedStudents(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3", "4"},
		TotalClasses: 2,
		ClassSize:    dto.ClassSize{Max: 2},
		Seed:         seedPtr(3),
	})
	require.NoError(t, err)
	assert.Len(t, resp.UnplacedStudentIDs, 8)
	assert.Contains(t, strings.Join(resp.Warnings, "\n"), "8 students could not be placed")
}

func TestClassBuilderGenerateDegenerateSettings(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3"},
		TotalClasses: 0,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Groups)
	assert.Empty(t, resp.UnplacedStudentIDs)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "nothing to generate")
}

func TestClassBuilderGenerateWarnsAboutIneligibleStudents(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3"},
		TotalClasses: 2,
		Seed:         seedPtr(5),
	})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "Straight Year 3", resp.Groups[0].Name)
	assert.Equal(t, 6, resp.Groups[0].Classes[0].Size()+resp.Groups[0].Classes[1].Size())
	assert.Contains(t, strings.Join(resp.Warnings, "\n"), "6 students are outside the selected year levels")
}

func TestClassBuilderGenerateValidation(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	_, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{YearLevels: []string{"3"}, TotalClasses: 1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	students := rosterInputs()
	students[1].ID = students[0].ID
	_, err = svc.Generate(context.Background(), dto.GenerateClassesRequest{Students: students, YearLevels: []string{"3"}, TotalClasses: 1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3"},
		TotalClasses: 1,
		ClassSize:    dto.ClassSize{Min: 10, Max: 5},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestClassBuilderMoveStudentReportsViolations(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})
	students := rosterInputs()[:6]
	students[0].SeparateRequest = "First01 Last01"

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     students,
		YearLevels:   []string{"3"},
		TotalClasses: 2,
		Seed:         seedPtr(11),
	})
	require.NoError(t, err)
	require.Len(t, resp.Requests.Separations, 1)

	group, target := locate(resp.Groups, "s00")
	_, from := locate(resp.Groups, "s01")
	require.NotEqual(t, target, from, "separation is honoured by generation")
	srcBefore := resp.Groups[0].Classes[from].Size()
	dstBefore := resp.Groups[0].Classes[target].Size()

	moved, err := svc.MoveStudent(context.Background(), resp.ProposalID, dto.MoveStudentRequest{
		StudentID:   "s01",
		SourceGroup: group,
		SourceClass: from,
		DestGroup:   group,
		DestClass:   target,
	})
	require.NoError(t, err)
	assert.Equal(t, srcBefore-1, moved.Source.Size())
	assert.Equal(t, dstBefore+1, moved.Destination.Size())
	assert.Equal(t, "s01", moved.Destination.Students[dstBefore].ID)
	require.Len(t, moved.Violations, 1)
	assert.Equal(t, allocation.RequestSeparate, moved.Violations[0].Kind)

	assert.Equal(t, dstBefore, resp.Groups[0].Classes[target].Size(), "earlier response is not mutated")

	current, err := svc.GetProposal(context.Background(), resp.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, dstBefore+1, current.Groups[0].Classes[target].Size())
}

func TestClassBuilderMoveStudentErrors(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})
	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs()[:6],
		YearLevels:   []string{"3"},
		TotalClasses: 2,
		Seed:         seedPtr(2),
	})
	require.NoError(t, err)

	_, err = svc.MoveStudent(context.Background(), resp.ProposalID, dto.MoveStudentRequest{
		StudentID: "s00", SourceGroup: "Straight Year 9", DestGroup: "Straight Year 3",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidMove)

	_, err = svc.MoveStudent(context.Background(), "missing", dto.MoveStudentRequest{
		StudentID: "s00", SourceGroup: "Straight Year 3", DestGroup: "Straight Year 3",
	})
	assert.ErrorIs(t, err, appErrors.ErrProposalExpired)

	_, err = svc.MoveStudent(context.Background(), resp.ProposalID, dto.MoveStudentRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestClassBuilderProposalExpires(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})
	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3", "4"},
		TotalClasses: 2,
		Seed:         seedPtr(2),
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = svc.GetProposal(context.Background(), resp.ProposalID)
	assert.ErrorIs(t, err, appErrors.ErrProposalExpired)
	assert.Equal(t, 0, svc.SweepProposals())
}

func TestClassBuilderProposalFallsBackToCache(t *testing.T) {
	cache := NewCacheService(&memoryCacheRepo{}, nil, zap.NewNop(), CacheConfig{Enabled: true, KeyPrefix: "test"})
	svc := newClassBuilderService(t, classBuilderFixture{cache: cache})
	students := rosterInputs()[:6]
	students[2].PairRequest = "First03"

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     students,
		YearLevels:   []string{"3"},
		TotalClasses: 2,
		Seed:         seedPtr(9),
	})
	require.NoError(t, err)

	svc.store.Delete(resp.ProposalID)
	restored, err := svc.Proposal(context.Background(), resp.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, resp.Seed, restored.Seed)
	assert.Equal(t, 6, restored.Generated.StudentCount())
	require.Len(t, restored.Requests.Pairs, 1)
	assert.Equal(t, 1, svc.store.Len(), "cache hit repopulates memory")
}

func TestClassBuilderSaveCommits(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	generations := &generationRepoStub{}
	placements := &placementRepoStub{}
	svc := newClassBuilderService(t, classBuilderFixture{generations: generations, placements: placements, tx: tx})

	resp, err := svc.Generate(WithActor(context.Background(), "user-1"), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3", "4"},
		TotalClasses: 4,
		Seed:         seedPtr(4),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	gen, err := svc.Save(WithActor(context.Background(), "user-2"), dto.SaveGenerationRequest{ProposalID: resp.ProposalID, Name: "2025 intake"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "gen-1", gen.ID)
	assert.Equal(t, 1, gen.Version)
	assert.Equal(t, 12, gen.StudentCount)
	assert.Equal(t, 4, gen.ClassCount)
	assert.Equal(t, "user-2", gen.CreatedBy)
	assert.Contains(t, gen.Meta.String(), resp.ProposalID)
	require.Len(t, placements.inserted, 12)
	for _, p := range placements.inserted {
		assert.Equal(t, "gen-1", p.GenerationID)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	again, err := svc.Save(context.Background(), dto.SaveGenerationRequest{ProposalID: resp.ProposalID, Name: "2025 intake"})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)
}

func TestClassBuilderSaveRollsBackOnFailure(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	placements := &placementRepoStub{insertErr: errors.New("insert failed")}
	svc := newClassBuilderService(t, classBuilderFixture{generations: &generationRepoStub{}, placements: placements, tx: tx})

	resp, err := svc.Generate(context.Background(), dto.GenerateClassesRequest{
		Students:     rosterInputs(),
		YearLevels:   []string{"3", "4"},
		TotalClasses: 2,
		Seed:         seedPtr(4),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Save(context.Background(), dto.SaveGenerationRequest{ProposalID: resp.ProposalID, Name: "draft"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassBuilderPersistenceDisabled(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})
	assert.False(t, svc.PersistenceEnabled())

	_, err := svc.Save(context.Background(), dto.SaveGenerationRequest{ProposalID: "p", Name: "n"})
	assert.ErrorIs(t, err, appErrors.ErrFeatureDisabled)
	_, _, err = svc.List(context.Background(), models.ClassGenerationFilter{})
	assert.ErrorIs(t, err, appErrors.ErrFeatureDisabled)
	assert.ErrorIs(t, svc.Delete(context.Background(), "x"), appErrors.ErrFeatureDisabled)
}

func TestClassBuilderListAndPlacements(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	generations := &generationRepoStub{
		items: []models.ClassGeneration{{ID: "gen-1", Name: "Spring", Version: 1}},
		found: &models.ClassGeneration{ID: "gen-1", Name: "Spring", Version: 1},
	}
	placements := &placementRepoStub{rows: []models.ClassPlacement{
		{GroupName: "Straight Year 3", ClassIndex: 0, StudentID: "a", FullName: "Amy Adams", Academic: "High"},
		{GroupName: "Straight Year 3", ClassIndex: 1, StudentID: "b", FullName: "Bo Bell", Academic: "Low"},
		{GroupName: "Composite 3/4", GroupOrder: 1, ClassIndex: 0, StudentID: "c", FullName: "Cy Cole"},
	}}
	svc := newClassBuilderService(t, classBuilderFixture{generations: generations, placements: placements, tx: tx})

	items, page, err := svc.List(context.Background(), models.ClassGenerationFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)

	resp, err := svc.GetPlacements(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring", resp.Generation.Name)
	assert.Equal(t, map[string][]int{
		"Straight Year 3": {1, 1},
		"Composite 3/4":   {1},
	}, groupSizes(resp.Groups))
	assert.Equal(t, 1, resp.Groups[0].Classes[0].Stats.Count(allocation.CategoryAcademic, "High"))

	_, err = svc.GetPlacements(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestClassBuilderDeleteMapsNotFound(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	generations := &generationRepoStub{deleteErr: sql.ErrNoRows}
	svc := newClassBuilderService(t, classBuilderFixture{generations: generations, placements: &placementRepoStub{}, tx: tx})

	assert.ErrorIs(t, svc.Delete(context.Background(), "gen-1"), appErrors.ErrNotFound)
	generations.deleteErr = nil
	assert.NoError(t, svc.Delete(context.Background(), "gen-1"))
}

func TestClassBuilderParseRoster(t *testing.T) {
	svc := newClassBuilderService(t, classBuilderFixture{})

	text := "Class\tSurname\tFirst Name\tGender\tAcademic\tBehaviour\tRequest: Pair\tRequest: Separate\n" +
		"3A\tSmith\tJane\tFemale\tHigh\tGood\tJohn\t\n" +
		"3B\tDoe\tJohn\tMale\t2\t\t\t\n"
	resp, err := svc.ParseRosterText(context.Background(), dto.ParseRosterRequest{Text: text})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "Jane Smith", resp.Students[0].FullName)
	require.Len(t, resp.Requests.Pairs, 1)

	csv := "Class,Surname,First Name\n4A,Lee,Tom\n"
	fromFile, err := svc.ParseRoster(context.Background(), "roster.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, fromFile.Count)

	_, err = svc.ParseRoster(context.Background(), "roster.doc", strings.NewReader("x"))
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedFormat)

	_, err = svc.ParseRosterText(context.Background(), dto.ParseRosterRequest{Text: "\n\n"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
