package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const createAnalysesTable = `
CREATE TABLE IF NOT EXISTS analyses (
    task_id      TEXT PRIMARY KEY,
    request_id   INTEGER NOT NULL,
    status       TEXT NOT NULL,
    success      INTEGER NOT NULL,
    confidence   REAL,
    verdict      TEXT,
    error        TEXT,
    delivery_id  TEXT,
    processing_s REAL NOT NULL,
    submitted_at DATETIME NOT NULL,
    finished_at  DATETIME NOT NULL
)`

// ErrNotFound is returned when an analysis record is not found.
var ErrNotFound = errors.New("analysis record not found")

// Compile-time interface satisfaction check.
var _ Journal = (*SQLiteJournal)(nil)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens the SQLite database at dbPath and runs migrations.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createAnalysesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create analyses table: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Append inserts a terminal analysis record.
func (j *SQLiteJournal) Append(ctx context.Context, rec *Record) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO analyses (
			task_id, request_id, status, success, confidence, verdict,
			error, delivery_id, processing_s, submitted_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, rec.RequestID, rec.Status, rec.Success, rec.Score, rec.Verdict,
		rec.ErrorReason, rec.DeliveryID, rec.ProcessingSeconds, rec.SubmittedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis record: %w", err)
	}
	return nil
}

// GetRecord retrieves an analysis record by task ID.
func (j *SQLiteJournal) GetRecord(ctx context.Context, taskID string) (*Record, error) {
	rec := &Record{}
	err := j.db.QueryRowContext(ctx,
		`SELECT task_id, request_id, status, success, confidence, verdict,
			error, delivery_id, processing_s, submitted_at, finished_at
		FROM analyses WHERE task_id = ?`, taskID,
	).Scan(
		&rec.TaskID, &rec.RequestID, &rec.Status, &rec.Success, &rec.Score, &rec.Verdict,
		&rec.ErrorReason, &rec.DeliveryID, &rec.ProcessingSeconds, &rec.SubmittedAt, &rec.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis record: %w", err)
	}
	return rec, nil
}

// ListRecords returns a paginated list of records ordered by finished_at DESC,
// along with the total count of all records.
func (j *SQLiteJournal) ListRecords(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT task_id, request_id, status, success, confidence, verdict,
			error, delivery_id, processing_s, submitted_at, finished_at
		FROM analyses ORDER BY finished_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(
			&rec.TaskID, &rec.RequestID, &rec.Status, &rec.Success, &rec.Score, &rec.Verdict,
			&rec.ErrorReason, &rec.DeliveryID, &rec.ProcessingSeconds, &rec.SubmittedAt, &rec.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan analysis record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate analyses: %w", err)
	}

	return records, total, nil
}

// GetStats aggregates counts and averages over all journaled analyses.
// Averages are zero when the journal is empty.
func (j *SQLiteJournal) GetStats(ctx context.Context) (*Stats, error) {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &Stats{CountByStatus: make(map[string]int)}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(AVG(success), 0),
			COALESCE(AVG(processing_s), 0)
		FROM analyses`,
	).Scan(&stats.Total, &stats.SuccessRate, &stats.AvgProcessingSeconds)
	if err != nil {
		return nil, fmt.Errorf("aggregate analyses: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(confidence), 0) FROM analyses WHERE success = 1",
	).Scan(&stats.AvgScore)
	if err != nil {
		return nil, fmt.Errorf("average confidence: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM analyses GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return stats, nil
}
