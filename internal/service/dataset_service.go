package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/internal/projection"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

type gradebookReader interface {
	ListCourseItems(ctx context.Context, courseID int64) ([]models.GradeItem, error)
	ListCourseGrades(ctx context.Context, courseID int64) ([]models.GradeEntry, error)
	SchemeBoundaries(ctx context.Context, contextID int64) ([]float64, error)
	LastSchemeUpdate(ctx context.Context, courseID int64) (*time.Time, error)
}

type monitorRecordStore interface {
	Latest(ctx context.Context, userID, courseID int64) (*models.MonitorRecord, error)
	Insert(ctx context.Context, record *models.MonitorRecord) error
	Append(ctx context.Context, record *models.MonitorRecord, logs []models.MonitorLog) error
}

// DatasetConfig holds the settings of a first visit.
type DatasetConfig struct {
	DefaultGoal     int
	DefaultEstimate float64
}

// DatasetService assembles the monitor dataset of a student in a course.
type DatasetService struct {
	gradebook gradebookReader
	records   monitorRecordStore
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       DatasetConfig
}

// NewDatasetService constructs the service.
func NewDatasetService(gradebook gradebookReader, records monitorRecordStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg DatasetConfig) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultGoal < 0 || cfg.DefaultGoal > projection.MaxGoal {
		cfg.DefaultGoal = 3
	}
	if cfg.DefaultEstimate < 0 || cfg.DefaultEstimate > 100 {
		cfg.DefaultEstimate = 70
	}
	return &DatasetService{gradebook: gradebook, records: records, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// Load fetches items, grades, the stored record and the scheme. Any failure
// aborts with ErrMonitorUnavailable.
func (s *DatasetService) Load(ctx context.Context, scope models.MonitorScope) (models.Dataset, error) {
	var (
		items  []models.GradeItem
		grades []models.GradeEntry
		scheme []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		start := time.Now()
		items, err = s.gradebook.ListCourseItems(gctx, scope.CourseID)
		s.metrics.ObserveDBQuery("course_items", time.Since(start))
		return err
	})
	g.Go(func() (err error) {
		start := time.Now()
		grades, err = s.gradebook.ListCourseGrades(gctx, scope.CourseID)
		s.metrics.ObserveDBQuery("course_grades", time.Since(start))
		return err
	})
	g.Go(func() (err error) {
		scheme, err = s.Scheme(gctx, scope.ContextID)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Dataset{}, s.unavailable(scope, "load gradebook", err)
	}

	record, err := s.record(ctx, scope, items)
	if err != nil {
		return models.Dataset{}, s.unavailable(scope, "load monitor record", err)
	}

	ds := models.Dataset{
		Items:       buildItems(items, grades, record.Estimations, scope.UserID, s.cfg.DefaultEstimate),
		Goal:        record.Goal,
		Scheme:      scheme,
		ShowAverage: record.ShowOthers,
	}
	if !record.DismissNotification {
		updated, err := s.gradebook.LastSchemeUpdate(ctx, scope.CourseID)
		if err != nil {
			return models.Dataset{}, s.unavailable(scope, "load scheme update", err)
		}
		ds.LastSchemeUpdate = updated
	}
	return ds, nil
}

// Scheme returns the four grade boundaries of a context, read through the
// cache. Contexts without a full set of letters get the default scheme.
func (s *DatasetService) Scheme(ctx context.Context, contextID int64) ([]float64, error) {
	key := schemeCacheKey(contextID)
	var cached []float64
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit && len(cached) == 4 {
		return cached, nil
	}

	start := time.Now()
	boundaries, err := s.gradebook.SchemeBoundaries(ctx, contextID)
	s.metrics.ObserveDBQuery("grade_letters", time.Since(start))
	if err != nil {
		return nil, err
	}
	scheme := projection.DefaultScheme()
	if len(boundaries) == 4 {
		if parsed, err := projection.NewScheme(boundaries); err == nil {
			scheme = parsed
		} else {
			s.logger.Warn("grade letters do not form a scheme", zap.Int64("context_id", contextID), zap.Float64s("boundaries", boundaries))
		}
	}
	out := scheme[:]
	if err := s.cache.Set(ctx, key, out, 0); err != nil {
		s.logger.Warn("cache scheme", zap.Error(err))
	}
	return out, nil
}

// InvalidateScheme drops the cached scheme of a context.
func (s *DatasetService) InvalidateScheme(ctx context.Context, contextID int64) error {
	return s.cache.Invalidate(ctx, schemeCacheKey(contextID))
}

func (s *DatasetService) record(ctx context.Context, scope models.MonitorScope, items []models.GradeItem) (*models.MonitorRecord, error) {
	record, err := s.records.Latest(ctx, scope.UserID, scope.CourseID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}
	record = DefaultRecord(scope, items, s.cfg)
	if err := s.records.Insert(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("created monitor record", zap.Int64("user_id", scope.UserID), zap.Int64("course_id", scope.CourseID))
	return record, nil
}

func (s *DatasetService) unavailable(scope models.MonitorScope, step string, err error) error {
	s.logger.Error("monitor dataset unavailable",
		zap.String("step", step),
		zap.Int64("user_id", scope.UserID),
		zap.Int64("course_id", scope.CourseID),
		zap.Error(err),
	)
	return appErrors.Wrap(err, appErrors.ErrMonitorUnavailable.Code, appErrors.ErrMonitorUnavailable.Status, appErrors.ErrMonitorUnavailable.Message)
}

// DefaultRecord is the record of a first visit: every item estimated at the
// default, nothing checked and the class average shown.
func DefaultRecord(scope models.MonitorScope, items []models.GradeItem, cfg DatasetConfig) *models.MonitorRecord {
	state := models.EstimationState{
		Estimations:    make([]models.ItemEstimate, 0, len(items)),
		CheckedIndexes: make([]models.ItemChecked, 0, len(items)),
	}
	for pos, item := range items {
		state.Estimations = append(state.Estimations, models.ItemEstimate{Pos: pos, ItemID: item.ID, Estimation: cfg.DefaultEstimate})
		state.CheckedIndexes = append(state.CheckedIndexes, models.ItemChecked{Pos: pos, ItemID: item.ID})
	}
	return &models.MonitorRecord{
		UserID:      scope.UserID,
		CourseID:    scope.CourseID,
		Goal:        cfg.DefaultGoal,
		Estimations: state,
		ShowOthers:  true,
	}
}

// buildItems joins items with grades and stored estimates into parallel
// arrays. An item is optional when any of its grades is an extra credit.
func buildItems(items []models.GradeItem, grades []models.GradeEntry, state models.EstimationState, userID int64, defaultEstimate float64) models.DatasetItems {
	out := models.DatasetItems{
		IDs:         make([]int64, 0, len(items)),
		Names:       make([]string, 0, len(items)),
		MaxScores:   make([]float64, 0, len(items)),
		Scores:      make([]*float64, 0, len(items)),
		ClassAvgs:   make([]*float64, 0, len(items)),
		Estimations: make([]*float64, 0, len(items)),
	}
	byItem := make(map[int64][]models.GradeEntry, len(items))
	for _, g := range grades {
		byItem[g.ItemID] = append(byItem[g.ItemID], g)
	}

	for index, item := range items {
		var (
			score    *float64
			sum      float64
			count    int
			optional = item.ItemType == "bonus"
		)
		for _, g := range byItem[item.ID] {
			if g.AggregationStatus == models.AggregationExtra {
				optional = true
			}
			if g.FinalGrade == nil {
				continue
			}
			sum += *g.FinalGrade
			count++
			if g.UserID == userID {
				v := *g.FinalGrade
				score = &v
			}
		}
		var avg *float64
		if count > 0 {
			v := sum / float64(count)
			avg = &v
		}
		est := defaultEstimate
		if stored, ok := state.EstimateFor(item.ID); ok {
			est = stored
		}

		out.IDs = append(out.IDs, item.ID)
		out.Names = append(out.Names, item.Name)
		out.MaxScores = append(out.MaxScores, item.GradeMax)
		out.Scores = append(out.Scores, score)
		out.ClassAvgs = append(out.ClassAvgs, avg)
		out.Estimations = append(out.Estimations, &est)
		if optional {
			out.OptionalIndexes = append(out.OptionalIndexes, index)
		}
		if state.CheckedFor(item.ID) {
			out.CheckedIndexes = append(out.CheckedIndexes, index)
		}
	}
	return out
}

func schemeCacheKey(contextID int64) string {
	return fmt.Sprintf("scheme:context:%d", contextID)
}
