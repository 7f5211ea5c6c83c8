package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grademonitor-api/internal/models"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// PersistenceService stores flushed change-sets as a new monitor record.
type PersistenceService struct {
	records monitorRecordStore
	metrics *MetricsService
	logger  *zap.Logger
	cfg     DatasetConfig
	now     func() time.Time
}

// NewPersistenceService constructs the service. cfg seeds the record of a
// student who has none yet.
func NewPersistenceService(records monitorRecordStore, metrics *MetricsService, logger *zap.Logger, cfg DatasetConfig) *PersistenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceService{records: records, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Persist merges the batch into the latest record and appends the result
// together with the batch telemetry.
func (s *PersistenceService) Persist(ctx context.Context, batch models.ChangeBatch) error {
	if batch.Changes.Empty() && len(batch.Logs) == 0 {
		return nil
	}
	scope := batch.Scope
	logs := s.logRows(scope, batch.Logs)

	var record *models.MonitorRecord
	if !batch.Changes.Empty() {
		start := time.Now()
		latest, err := s.records.Latest(ctx, scope.UserID, scope.CourseID)
		s.metrics.ObserveDBQuery("monitor_latest", time.Since(start))
		switch {
		case err == nil:
		case errors.Is(err, appErrors.ErrNotFound):
			latest = DefaultRecord(scope, nil, s.cfg)
		default:
			return err
		}
		record = MergeChanges(*latest, batch.Changes)
		record.CreatedAt = s.now().UTC()
	}

	start := time.Now()
	err := s.records.Append(ctx, record, logs)
	s.metrics.ObserveDBQuery("monitor_append", time.Since(start))
	if err != nil {
		return err
	}
	s.logger.Debug("monitor changes persisted",
		zap.Int64("user_id", scope.UserID),
		zap.Int64("course_id", scope.CourseID),
		zap.Bool("record", record != nil),
		zap.Int("logs", len(logs)),
	)
	return nil
}

func (s *PersistenceService) logRows(scope models.MonitorScope, entries []models.LogEntry) []models.MonitorLog {
	if len(entries) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := make([]models.MonitorLog, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.MonitorLog{
			UserID:    scope.UserID,
			CourseID:  scope.CourseID,
			ContextID: scope.ContextID,
			Kind:      e.Kind,
			Category:  e.Category,
			Value:     e.Value,
			ItemID:    e.ItemID,
			CreatedAt: now,
		})
	}
	return rows
}

// MergeChanges returns a new record built from base with the changed fields
// applied. Items unknown to base are appended in id order.
func MergeChanges(base models.MonitorRecord, changes models.MonitorChanges) *models.MonitorRecord {
	next := base
	next.ID = ""
	next.CreatedAt = time.Time{}
	next.Estimations = models.EstimationState{
		Estimations:    append([]models.ItemEstimate(nil), base.Estimations.Estimations...),
		CheckedIndexes: append([]models.ItemChecked(nil), base.Estimations.CheckedIndexes...),
	}

	if changes.Goal != nil {
		next.Goal = *changes.Goal
	}
	if changes.ShowAverage != nil {
		next.ShowOthers = *changes.ShowAverage
	}
	if changes.SchemeUpdateSeen != nil {
		next.DismissNotification = *changes.SchemeUpdateSeen
	}

	for _, id := range sortedKeys(changes.Estimations) {
		est := changes.Estimations[id]
		found := false
		for i := range next.Estimations.Estimations {
			if next.Estimations.Estimations[i].ItemID == id {
				next.Estimations.Estimations[i].Estimation = est
				found = true
			}
		}
		if !found {
			pos := len(next.Estimations.Estimations)
			next.Estimations.Estimations = append(next.Estimations.Estimations, models.ItemEstimate{Pos: pos, ItemID: id, Estimation: est})
		}
	}
	for _, id := range sortedKeys(changes.Checked) {
		checked := changes.Checked[id]
		found := false
		for i := range next.Estimations.CheckedIndexes {
			if next.Estimations.CheckedIndexes[i].ItemID == id {
				next.Estimations.CheckedIndexes[i].Checked = checked
				found = true
			}
		}
		if !found {
			pos := len(next.Estimations.CheckedIndexes)
			next.Estimations.CheckedIndexes = append(next.Estimations.CheckedIndexes, models.ItemChecked{Pos: pos, ItemID: id, Checked: checked})
		}
	}
	return &next
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
