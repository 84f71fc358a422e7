package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// capture statuses
const (
	CaptureInserted = "inserted"
	CaptureAborted  = "aborted"
)

// caption statuses
const (
	CaptionPending  = "pending"
	CaptionDone     = "done"
	CaptionFallback = "fallback"
)

// Capture is one row of the capture log
type Capture struct {
	ID               int64   `json:"id"`
	PhotoID          *string `json:"photo_id,omitempty"`
	Status           string  `json:"status"`
	Reason           *string `json:"reason,omitempty"`
	Orientation      *string `json:"orientation,omitempty"`
	CaptionStatus    *string `json:"caption_status,omitempty"`
	StartedAt        int64   `json:"started_at"`  // unix millis
	FinishedAt       int64   `json:"finished_at"` // unix millis
	CaptionSettledAt *int64  `json:"caption_settled_at,omitempty"`
}

// CaptureLog records capture pipeline outcomes in the captures table
type CaptureLog struct {
	DB Querier
}

func NewCaptureLog(db Querier) *CaptureLog {
	return &CaptureLog{DB: db}
}

// RecordInserted logs a capture that produced a photo; its caption starts pending
func (l *CaptureLog) RecordInserted(photoID, orientation string, startedAt, finishedAt time.Time) error {
	queryBuilder := psql.Insert("captures").
		Columns("photo_id", "status", "orientation", "caption_status", "started_at", "finished_at").
		Values(photoID, CaptureInserted, orientation, CaptionPending, startedAt.UnixMilli(), finishedAt.UnixMilli())

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordInserted: %w", err)
	}
	if _, err := l.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record inserted capture for %s: %w", photoID, err)
	}
	return nil
}

// RecordAborted logs a capture that never produced a photo
func (l *CaptureLog) RecordAborted(reason error, startedAt, finishedAt time.Time) error {
	var reasonStr *string
	if reason != nil {
		s := reason.Error()
		reasonStr = &s
	}

	queryBuilder := psql.Insert("captures").
		Columns("status", "reason", "started_at", "finished_at").
		Values(CaptureAborted, reasonStr, startedAt.UnixMilli(), finishedAt.UnixMilli())

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordAborted: %w", err)
	}
	if _, err := l.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record aborted capture: %w", err)
	}
	return nil
}

// RecordCaption sets the caption outcome for the capture that produced photoID
func (l *CaptureLog) RecordCaption(photoID string, fallback bool, settledAt time.Time) error {
	status := CaptionDone
	if fallback {
		status = CaptionFallback
	}

	queryBuilder := psql.Update("captures").
		Set("caption_status", status).
		Set("caption_settled_at", settledAt.UnixMilli()).
		Where(sq.Eq{"photo_id": photoID})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordCaption: %w", err)
	}
	if _, err := l.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record caption outcome for %s: %w", photoID, err)
	}
	return nil
}

// ListRecent returns up to limit captures, newest first
func (l *CaptureLog) ListRecent(limit uint64) ([]Capture, error) {
	queryBuilder := psql.Select(
		"id", "photo_id", "status", "reason", "orientation",
		"caption_status", "started_at", "finished_at", "caption_settled_at",
	).From("captures").
		OrderBy("id DESC").
		Limit(limit)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListRecent: %w", err)
	}

	rows, err := l.DB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	captures := []Capture{}
	for rows.Next() {
		var c Capture
		var photoID, reason, orientation, captionStatus sql.NullString
		var settledAt sql.NullInt64
		if err := rows.Scan(&c.ID, &photoID, &c.Status, &reason, &orientation,
			&captionStatus, &c.StartedAt, &c.FinishedAt, &settledAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture row: %w", err)
		}
		c.PhotoID = nullStringPtr(photoID)
		c.Reason = nullStringPtr(reason)
		c.Orientation = nullStringPtr(orientation)
		c.CaptionStatus = nullStringPtr(captionStatus)
		if settledAt.Valid {
			v := settledAt.Int64
			c.CaptionSettledAt = &v
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capture rows: %w", err)
	}
	return captures, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
