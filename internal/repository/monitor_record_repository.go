package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grademonitor-api/internal/models"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// MonitorRecordRepository persists append-only monitor snapshots and their
// telemetry.
type MonitorRecordRepository struct {
	db *sqlx.DB
}

// NewMonitorRecordRepository constructs the repository.
func NewMonitorRecordRepository(db *sqlx.DB) *MonitorRecordRepository {
	return &MonitorRecordRepository{db: db}
}

const insertMonitorRecord = `INSERT INTO grade_monitor_records (id, user_id, course_id, goal, scheme_update, estimations, show_others, dismiss_notification, created_at)
VALUES (:id, :user_id, :course_id, :goal, :scheme_update, :estimations, :show_others, :dismiss_notification, :created_at)`

const insertMonitorLog = `INSERT INTO grade_monitor_logs (id, user_id, course_id, context_id, kind, category, value, item_id, created_at)
VALUES (:id, :user_id, :course_id, :context_id, :kind, :category, :value, :item_id, :created_at)`

// Latest returns the newest record of a user in a course.
func (r *MonitorRecordRepository) Latest(ctx context.Context, userID, courseID int64) (*models.MonitorRecord, error) {
	const query = `SELECT id, user_id, course_id, goal, scheme_update, estimations, show_others, dismiss_notification, created_at
FROM grade_monitor_records WHERE user_id = $1 AND course_id = $2 ORDER BY created_at DESC LIMIT 1`
	var record models.MonitorRecord
	if err := r.db.GetContext(ctx, &record, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get latest monitor record: %w", err)
	}
	return &record, nil
}

// Insert appends a record.
func (r *MonitorRecordRepository) Insert(ctx context.Context, record *models.MonitorRecord) error {
	prepareRecord(record)
	if _, err := r.db.NamedExecContext(ctx, insertMonitorRecord, record); err != nil {
		return fmt.Errorf("insert monitor record: %w", err)
	}
	return nil
}

// Append stores a record and its telemetry in one transaction.
func (r *MonitorRecordRepository) Append(ctx context.Context, record *models.MonitorRecord, logs []models.MonitorLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin monitor record tx: %w", err)
	}
	if record != nil {
		prepareRecord(record)
		if _, err := tx.NamedExecContext(ctx, insertMonitorRecord, record); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert monitor record: %w", err)
		}
	}
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.NewString()
		}
		if logs[i].CreatedAt.IsZero() {
			logs[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insertMonitorLog, logs[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert monitor log: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit monitor record tx: %w", err)
	}
	return nil
}

func prepareRecord(record *models.MonitorRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}
