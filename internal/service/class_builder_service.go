package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/class-builder-api/internal/allocation"
	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/roster"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
)

type classGenerationRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, gen *models.ClassGeneration) error
	List(ctx context.Context, filter models.ClassGenerationFilter) ([]models.ClassGeneration, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassGeneration, error)
	Delete(ctx context.Context, id string) error
}

type classPlacementRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, placements []models.ClassPlacement) error
	ListByGeneration(ctx context.Context, generationID string) ([]models.ClassPlacement, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ClassBuilderConfig governs generation limits and defaults.
type ClassBuilderConfig struct {
	DefaultMinSize int
	DefaultMaxSize int
	MaxStudents    int
	ProposalTTL    time.Duration
	ParallelPools  bool
}

// ClassBuilderService generates balanced class proposals, applies manual
// moves and persists chosen proposals as versioned generations.
type ClassBuilderService struct {
	generations classGenerationRepository
	placements  classPlacementRepository
	tx          txProvider
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ClassBuilderConfig
	store       *proposalStore
	builder     *roster.Builder
	now         func() time.Time
	newSeed     func() int64
}

// NewClassBuilderService wires the generator. Repositories and tx may be nil
// when persistence is disabled; cache and metrics may be nil.
func NewClassBuilderService(
	generations classGenerationRepository,
	placements classPlacementRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ClassBuilderConfig,
) *ClassBuilderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultMaxSize <= 0 {
		cfg.DefaultMaxSize = 30
	}
	if cfg.DefaultMinSize < 0 || cfg.DefaultMinSize > cfg.DefaultMaxSize {
		cfg.DefaultMinSize = 0
	}
	if cfg.MaxStudents <= 0 {
		cfg.MaxStudents = 2000
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 2 * time.Hour
	}
	svc := &ClassBuilderService{
		generations: generations,
		placements:  placements,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		builder:     roster.NewBuilder(nil),
		now:         func() time.Time { return time.Now().UTC() },
		newSeed:     func() int64 { return time.Now().UnixNano() },
	}
	svc.store = newProposalStore(func() time.Time { return svc.now() })
	return svc
}

// PersistenceEnabled reports whether save/list endpoints are backed by a database.
func (s *ClassBuilderService) PersistenceEnabled() bool {
	return s.generations != nil && s.placements != nil && s.tx != nil
}

// Generate partitions and balances the roster and stores the result as a proposal.
func (s *ClassBuilderService) Generate(ctx context.Context, req dto.GenerateClassesRequest) (*dto.GenerateClassesResponse, error) {
	proposal, err := s.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	proposal.CreatedBy = actorFromContext(ctx)
	resp := proposalResponse(proposal.Clone())
	s.storeProposal(ctx, proposal)
	return resp, nil
}

// Build runs a generation without storing it. The CLI uses it directly.
func (s *ClassBuilderService) Build(ctx context.Context, req dto.GenerateClassesRequest) (*models.Proposal, error) {
	req.ClassSize = s.classSizeWithDefaults(req.ClassSize)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class generation payload")
	}
	if len(req.Students) > s.cfg.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("roster has %d students, the limit is %d", len(req.Students), s.cfg.MaxStudents))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	students, err := s.studentsFromInput(req.Students)
	if err != nil {
		return nil, err
	}

	seed := s.newSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	weights := allocation.DefaultWeights()
	if req.Weights != nil && *req.Weights != (allocation.Weights{}) {
		weights = *req.Weights
	}
	settings := models.ProposalSettings{
		YearLevels:       req.YearLevels,
		TotalClasses:     req.TotalClasses,
		CompositeClasses: req.CompositeClasses,
		MinClassSize:     req.ClassSize.Min,
		MaxClassSize:     req.ClassSize.Max,
		Weights:          weights,
	}
	opts := allocation.Options{
		MaxClassSize: req.ClassSize.Max,
		MinClassSize: req.ClassSize.Min,
		Weights:      weights,
	}

	start := time.Now()
	ledger := allocation.ResolveRequests(students)
	plan := allocation.Partition(students, req.YearLevels, req.TotalClasses, req.CompositeClasses)
	if plan.YearLevels != nil {
		settings.YearLevels = plan.YearLevels
	}

	now := s.now()
	proposal := &models.Proposal{
		ID:            uuid.NewString(),
		Seed:          seed,
		Settings:      settings,
		Generated:     &allocation.Generated{Groups: []*allocation.Group{}},
		Requests:      ledger,
		Unplaced:      []allocation.Student{},
		Fallbacks:     []models.GroupFallback{},
		UnseededPairs: []allocation.Request{},
		Warnings:      []string{},
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.ProposalTTL),
	}

	if plan.Degenerate {
		proposal.Warnings = append(proposal.Warnings, "class settings leave nothing to generate: check total, composite and year levels")
		s.observe(proposal, len(students), true, time.Since(start))
		return proposal, nil
	}
	if ineligible := len(students) - len(plan.Eligible); ineligible > 0 {
		proposal.Warnings = append(proposal.Warnings, fmt.Sprintf("%d students are outside the selected year levels and were not placed", ineligible))
	}

	straight, err := s.balanceYears(ctx, plan, ledger, opts, seed)
	if err != nil {
		return nil, err
	}

	placed := make(map[string]struct{}, len(plan.Eligible))
	for i, year := range plan.Years {
		result := straight[i]
		group := allocation.StraightGroupName(year.Year)
		for id := range result.PlacedSet() {
			placed[id] = struct{}{}
		}
		proposal.Generated.Add(group, result.Classes)
		s.collect(proposal, group, result, opts)
	}

	pool := plan.CompositePool(placed)
	if plan.CompositeClasses > 0 {
		group := allocation.CompositeGroupName(plan.YearLevels)
		if len(pool) == 0 {
			proposal.Warnings = append(proposal.Warnings, "composite classes were requested but every eligible student was placed in a straight class")
		}
		result := allocation.Balance(pool, plan.CompositeClasses, ledger, opts, rand.New(rand.NewSource(seed+int64(len(plan.Years)))))
		proposal.Generated.Add(group, result.Classes)
		s.collect(proposal, group, result, opts)
		proposal.Unplaced = append(proposal.Unplaced, result.Unplaced...)
	} else {
		proposal.Unplaced = append(proposal.Unplaced, pool...)
	}

	if n := len(proposal.Unplaced); n > 0 {
		proposal.Warnings = append(proposal.Warnings, fmt.Sprintf("%d students could not be placed because every class was full", n))
		s.logger.Warn("class generation left students unplaced",
			zap.String("proposal_id", proposal.ID),
			zap.Int("unplaced", n),
			zap.Int("max_class_size", opts.MaxClassSize))
	}

	s.observe(proposal, len(students), false, time.Since(start))
	s.logger.Info("class generation completed",
		zap.String("proposal_id", proposal.ID),
		zap.Int64("seed", seed),
		zap.Int("students", len(students)),
		zap.Int("groups", len(proposal.Generated.Groups)),
		zap.Int("fallbacks", len(proposal.Fallbacks)),
		zap.Duration("duration", time.Since(start)))
	return proposal, nil
}

// balanceYears runs every straight pool. Pools are independent so they run
// concurrently when configured; each gets its own seeded source.
func (s *ClassBuilderService) balanceYears(ctx context.Context, plan allocation.Plan, ledger allocation.Ledger, opts allocation.Options, seed int64) ([]allocation.Result, error) {
	results := make([]allocation.Result, len(plan.Years))
	run := func(i int) {
		year := plan.Years[i]
		rng := rand.New(rand.NewSource(seed + int64(i)))
		results[i] = allocation.Balance(year.Students, year.Classes, ledger, opts, rng)
	}

	if !s.cfg.ParallelPools {
		for i := range plan.Years {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			run(i)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range plan.Years {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *ClassBuilderService) collect(p *models.Proposal, group string, result allocation.Result, opts allocation.Options) {
	for _, ev := range result.Fallbacks {
		p.Fallbacks = append(p.Fallbacks, models.GroupFallback{Group: group, FallbackEvent: ev})
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s: %s shares class %d with %s despite a separation request",
			group, ev.StudentName, ev.ClassIndex+1, strings.Join(ev.ConflictsWith, ", ")))
		s.logger.Warn("separation request overridden",
			zap.String("proposal_id", p.ID),
			zap.String("group", group),
			zap.String("student_id", ev.StudentID),
			zap.Strings("conflicts_with", ev.ConflictsWith))
	}
	p.UnseededPairs = append(p.UnseededPairs, result.UnseededPairs...)
	for _, idx := range result.UndersizedClasses {
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s class %d has %d students, below the minimum of %d",
			group, idx+1, result.Classes[idx].Size(), opts.MinClassSize))
	}
}

func (s *ClassBuilderService) observe(p *models.Proposal, students int, degenerate bool, d time.Duration) {
	s.metrics.ObserveGeneration(GenerationOutcome{
		Students:      students,
		Unplaced:      len(p.Unplaced),
		Fallbacks:     len(p.Fallbacks),
		UnseededPairs: len(p.UnseededPairs),
		Degenerate:    degenerate,
		Duration:      d,
	})
}

func (s *ClassBuilderService) classSizeWithDefaults(size dto.ClassSize) dto.ClassSize {
	if size.Max == 0 {
		size.Max = s.cfg.DefaultMaxSize
	}
	if size.Min == 0 {
		size.Min = s.cfg.DefaultMinSize
		if size.Min > size.Max {
			size.Min = size.Max
		}
	}
	return size
}

func (s *ClassBuilderService) studentsFromInput(inputs []dto.StudentInput) ([]allocation.Student, error) {
	students := make([]allocation.Student, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		student := s.builder.Student(i, roster.Fields{
			ID:              in.ID,
			Class:           in.Class,
			Surname:         in.Surname,
			FirstName:       in.FirstName,
			Gender:          in.Gender,
			Academic:        in.Academic,
			Behaviour:       in.Behaviour,
			PairRequest:     in.PairRequest,
			SeparateRequest: in.SeparateRequest,
		})
		if full := strings.TrimSpace(in.FullName); full != "" {
			student.FullName = full
		}
		if _, dup := seen[student.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student id %q", student.ID))
		}
		seen[student.ID] = struct{}{}
		students = append(students, student)
	}
	return students, nil
}

// GetProposal returns a live proposal from memory or the shared cache.
func (s *ClassBuilderService) GetProposal(ctx context.Context, id string) (*dto.GenerateClassesResponse, error) {
	proposal, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	return proposalResponse(proposal), nil
}

// Proposal returns the stored proposal itself, for exports.
func (s *ClassBuilderService) Proposal(ctx context.Context, id string) (*models.Proposal, error) {
	return s.loadProposal(ctx, id)
}

// MoveStudent reassigns one student inside a proposal. Capacity and
// separation requests are not enforced; violations are reported back.
func (s *ClassBuilderService) MoveStudent(ctx context.Context, proposalID string, req dto.MoveStudentRequest) (*dto.MoveStudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	if _, err := s.loadProposal(ctx, proposalID); err != nil {
		return nil, err
	}

	position := math.MaxInt32
	if req.Position != nil {
		position = *req.Position
	}

	var resp *dto.MoveStudentResponse
	var snapshot *models.Proposal
	found, err := s.store.Update(proposalID, func(p *models.Proposal) error {
		moveErr := p.Generated.Move(allocation.MoveRequest{
			SourceGroup: req.SourceGroup,
			SourceClass: req.SourceClass,
			DestGroup:   req.DestGroup,
			DestClass:   req.DestClass,
			StudentID:   req.StudentID,
			Position:    position,
		})
		if moveErr != nil {
			return moveErr
		}
		src, _ := p.Generated.Class(req.SourceGroup, req.SourceClass)
		dst, _ := p.Generated.Class(req.DestGroup, req.DestClass)
		resp = &dto.MoveStudentResponse{
			Source:      src.Clone(),
			Destination: dst.Clone(),
			Violations:  allocation.SeparationViolations(dst, p.Requests),
		}
		if resp.Violations == nil {
			resp.Violations = []allocation.Request{}
		}
		snapshot = p.Clone()
		return nil
	})
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInvalidMove, err, err.Error())
	}
	if !found {
		return nil, appErrors.ErrProposalExpired
	}

	s.metrics.RecordMove()
	s.cacheProposal(ctx, snapshot)
	if len(resp.Violations) > 0 {
		s.logger.Info("manual move violates separation request",
			zap.String("proposal_id", proposalID),
			zap.String("student_id", req.StudentID),
			zap.Int("violations", len(resp.Violations)))
	}
	return resp, nil
}

// Save persists a proposal as the next version of the named generation.
func (s *ClassBuilderService) Save(ctx context.Context, req dto.SaveGenerationRequest) (*models.ClassGeneration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save generation payload")
	}
	if !s.PersistenceEnabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "generation persistence is disabled")
	}
	proposal, err := s.loadProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	meta, marshalErr := json.Marshal(map[string]any{
		"proposalId":    proposal.ID,
		"settings":      proposal.Settings,
		"requests":      proposal.Requests,
		"fallbacks":     proposal.Fallbacks,
		"unseededPairs": proposal.UnseededPairs,
		"unplaced":      studentIDs(proposal.Unplaced),
		"warnings":      proposal.Warnings,
		"generatedAt":   proposal.CreatedAt,
	})
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode generation metadata")
		return nil, err
	}

	classCount := 0
	for _, g := range proposal.Generated.Groups {
		classCount += len(g.Classes)
	}
	record := &models.ClassGeneration{
		Name:         req.Name,
		Seed:         proposal.Seed,
		StudentCount: proposal.Generated.StudentCount(),
		ClassCount:   classCount,
		Meta:         types.JSONText(meta),
		CreatedBy:    actorFromContext(ctx),
	}
	if err = s.generations.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class generation")
		return nil, err
	}

	if err = s.placements.InsertBatch(ctx, tx, placementsFromGenerated(record.ID, proposal.Generated)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist class placements")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit class generation")
		return nil, err
	}
	s.metrics.ObserveDBQuery("save_generation", time.Since(start))
	s.logger.Info("class generation saved",
		zap.String("generation_id", record.ID),
		zap.String("name", record.Name),
		zap.Int("version", record.Version),
		zap.Int("students", record.StudentCount))
	return record, nil
}

// List returns saved generations, newest first.
func (s *ClassBuilderService) List(ctx context.Context, filter models.ClassGenerationFilter) ([]models.ClassGeneration, *models.Pagination, error) {
	if !s.PersistenceEnabled() {
		return nil, nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "generation persistence is disabled")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.generations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class generations")
	}
	if items == nil {
		items = []models.ClassGeneration{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetPlacements rebuilds the classes of a saved generation.
func (s *ClassBuilderService) GetPlacements(ctx context.Context, id string) (*dto.GenerationPlacementsResponse, error) {
	gen, generated, err := s.LoadGeneration(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.GenerationPlacementsResponse{Generation: *gen, Groups: generated.Groups}, nil
}

// LoadGeneration returns a saved generation with its classes rebuilt.
func (s *ClassBuilderService) LoadGeneration(ctx context.Context, id string) (*models.ClassGeneration, *allocation.Generated, error) {
	if !s.PersistenceEnabled() {
		return nil, nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "generation persistence is disabled")
	}
	gen, err := s.generations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class generation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class generation")
	}
	rows, err := s.placements.ListByGeneration(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class placements")
	}
	return gen, generatedFromPlacements(rows), nil
}

// Delete removes a saved generation and its placements.
func (s *ClassBuilderService) Delete(ctx context.Context, id string) error {
	if !s.PersistenceEnabled() {
		return appErrors.Clone(appErrors.ErrFeatureDisabled, "generation persistence is disabled")
	}
	if err := s.generations.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class generation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class generation")
	}
	s.logger.Info("class generation deleted", zap.String("generation_id", id))
	return nil
}

// ParseRoster reads an uploaded roster file.
func (s *ClassBuilderService) ParseRoster(ctx context.Context, filename string, r io.Reader) (*dto.ParseRosterResponse, error) {
	format, err := roster.FormatFromFilename(filename)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrUnsupportedFormat, err, "roster must be .xlsx, .csv, .tsv or .txt")
	}
	students, err := s.builder.Parse(format, r)
	return s.rosterResponse(ctx, students, err)
}

// ParseRosterText reads a pasted, tab separated roster.
func (s *ClassBuilderService) ParseRosterText(ctx context.Context, req dto.ParseRosterRequest) (*dto.ParseRosterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	students, err := s.builder.ParseText(req.Text)
	return s.rosterResponse(ctx, students, err)
}

func (s *ClassBuilderService) rosterResponse(ctx context.Context, students []allocation.Student, err error) (*dto.ParseRosterResponse, error) {
	if err != nil {
		switch {
		case errors.Is(err, roster.ErrEmptyRoster), errors.Is(err, roster.ErrMissingHeader):
			return nil, appErrors.WrapAs(appErrors.ErrValidation, err, err.Error())
		case errors.Is(err, roster.ErrUnsupportedInput):
			return nil, appErrors.WrapAs(appErrors.ErrUnsupportedFormat, err, err.Error())
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "roster could not be read")
		}
	}
	if len(students) > s.cfg.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("roster has %d students, the limit is %d", len(students), s.cfg.MaxStudents))
	}
	s.logger.Debug("roster parsed", zap.Int("students", len(students)), zap.String("actor", actorFromContext(ctx)))
	return &dto.ParseRosterResponse{
		Students: students,
		Count:    len(students),
		Requests: allocation.ResolveRequests(students),
	}, nil
}

// SweepProposals drops expired proposals from memory.
func (s *ClassBuilderService) SweepProposals() int {
	return s.store.Sweep()
}

// StartProposalSweeper drops expired proposals every interval until ctx ends.
func (s *ClassBuilderService) StartProposalSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepProposals(); n > 0 {
					s.logger.Debug("expired proposals swept", zap.Int("count", n))
				}
			}
		}
	}()
}

func (s *ClassBuilderService) storeProposal(ctx context.Context, p *models.Proposal) {
	s.store.Save(p)
	s.cacheProposal(ctx, p)
}

func (s *ClassBuilderService) cacheProposal(ctx context.Context, p *models.Proposal) {
	if p == nil || !s.cache.Enabled() {
		return
	}
	ttl := p.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	s.cache.Set(ctx, s.cache.Key("proposal", p.ID), p, ttl)
}

func (s *ClassBuilderService) loadProposal(ctx context.Context, id string) (*models.Proposal, error) {
	if p, ok := s.store.Get(id); ok {
		return p, nil
	}
	var cached models.Proposal
	if s.cache.Get(ctx, s.cache.Key("proposal", id), &cached) && cached.Generated != nil && !cached.Expired(s.now()) {
		s.store.Save(cached.Clone())
		return &cached, nil
	}
	return nil, appErrors.ErrProposalExpired
}

func proposalResponse(p *models.Proposal) *dto.GenerateClassesResponse {
	return &dto.GenerateClassesResponse{
		ProposalID:         p.ID,
		Seed:               p.Seed,
		ExpiresAt:          p.ExpiresAt,
		Settings:           p.Settings,
		Groups:             p.Generated.Groups,
		Requests:           p.Requests,
		UnplacedStudentIDs: studentIDs(p.Unplaced),
		Fallbacks:          p.Fallbacks,
		UnseededPairs:      p.UnseededPairs,
		Warnings:           p.Warnings,
	}
}

func studentIDs(students []allocation.Student) []string {
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	return ids
}

func placementsFromGenerated(generationID string, gen *allocation.Generated) []models.ClassPlacement {
	out := make([]models.ClassPlacement, 0, gen.StudentCount())
	for g, group := range gen.Groups {
		for c, class := range group.Classes {
			for pos, st := range class.Students {
				out = append(out, models.ClassPlacement{
					GenerationID:    generationID,
					GroupName:       group.Name,
					GroupOrder:      g,
					ClassIndex:      c,
					Position:        pos,
					StudentID:       st.ID,
					FirstName:       st.FirstName,
					Surname:         st.Surname,
					FullName:        st.FullName,
					PriorClass:      st.PriorClass,
					Gender:          st.Gender,
					Academic:        st.Academic,
					Behaviour:       st.Behaviour,
					PairRequest:     st.PairRequest,
					SeparateRequest: st.SeparateRequest,
				})
			}
		}
	}
	return out
}

// generatedFromPlacements expects rows ordered by group, class and position.
func generatedFromPlacements(rows []models.ClassPlacement) *allocation.Generated {
	gen := &allocation.Generated{Groups: []*allocation.Group{}}
	var current *allocation.Group
	for _, row := range rows {
		if current == nil || current.Name != row.GroupName {
			current = &allocation.Group{Name: row.GroupName}
			gen.Groups = append(gen.Groups, current)
		}
		for len(current.Classes) <= row.ClassIndex {
			current.Classes = append(current.Classes, allocation.NewClass())
		}
		current.Classes[row.ClassIndex].Add(allocation.Student{
			ID:              row.StudentID,
			FirstName:       row.FirstName,
			Surname:         row.Surname,
			FullName:        row.FullName,
			PriorClass:      row.PriorClass,
			Gender:          row.Gender,
			Academic:        row.Academic,
			Behaviour:       row.Behaviour,
			PairRequest:     row.PairRequest,
			SeparateRequest: row.SeparateRequest,
		})
	}
	return gen
}

// GeneratedStudents flattens a generation back into its roster, in placement order.
func GeneratedStudents(gen *allocation.Generated) []allocation.Student {
	out := make([]allocation.Student, 0, gen.StudentCount())
	for _, group := range gen.Groups {
		for _, class := range group.Classes {
			out = append(out, class.Students...)
		}
	}
	return out
}

type actorKey struct{}

// WithActor records the authenticated user id on the context.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func actorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
