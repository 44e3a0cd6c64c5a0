package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/metrics"
	"github.com/riskassess/backend/internal/storage/models"
	"github.com/riskassess/backend/pkg/logger"
	"github.com/riskassess/backend/pkg/retry"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Client struct {
	db       *sql.DB
	retryCfg retry.Config
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return NewClientWithDB(db), nil
}

// dsn applies the connection pragmas through the driver so that every pooled
// connection gets them, not just the first one.
func dsn(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// NewClientWithDB wraps an already opened handle.
func NewClientWithDB(db *sql.DB) *Client {
	cfg := retry.DefaultConfig()
	cfg.RetryIf = isBusy
	cfg.Logger = logger.GetLogger()

	return &Client{db: db, retryCfg: cfg}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		overall_risk REAL NOT NULL,
		risk_level TEXT,
		safety_status TEXT,
		attributes TEXT NOT NULL,
		result TEXT NOT NULL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_session ON predictions(session_id);
	CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		prediction_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (prediction_id) REFERENCES predictions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);

	CREATE TABLE IF NOT EXISTS parse_failures (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		prompt_fingerprint TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_parse_failures_created ON parse_failures(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) SavePrediction(ctx context.Context, rec *models.PredictionRecord) error {
	query := `
		INSERT INTO predictions (id, session_id, overall_risk, risk_level, safety_status, attributes, result, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.exec(ctx, "predictions", query,
		rec.ID,
		rec.SessionID,
		rec.OverallRisk,
		rec.RiskLevel,
		rec.SafetyStatus,
		rec.Attributes,
		rec.Result,
		rec.LatencyMS,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	logger.Debug("Prediction archived",
		zap.String("prediction_id", rec.ID),
		zap.String("session_id", rec.SessionID),
	)
	return nil
}

// SaveFeedback stores the latest feedback for a prediction, replacing any
// earlier rating.
func (c *Client) SaveFeedback(ctx context.Context, fb *models.FeedbackRecord) error {
	query := `
		INSERT INTO feedback (prediction_id, session_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(prediction_id) DO UPDATE SET
			rating = excluded.rating,
			comment = excluded.comment,
			created_at = excluded.created_at
	`

	err := c.exec(ctx, "feedback", query,
		fb.PredictionID,
		fb.SessionID,
		fb.Rating,
		fb.Comment,
		fb.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("prediction_id", fb.PredictionID),
		zap.Int("rating", fb.Rating),
	)
	return nil
}

func (c *Client) RecordParseFailure(ctx context.Context, pf *models.ParseFailure) error {
	query := `INSERT INTO parse_failures (id, session_id, prompt_fingerprint, raw_text, created_at) VALUES (?, ?, ?, ?, ?)`

	err := c.exec(ctx, "parse_failures", query,
		pf.ID,
		pf.SessionID,
		pf.PromptFingerprint,
		pf.RawText,
		pf.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record parse failure: %w", err)
	}
	return nil
}

// ListPredictions returns archived predictions newest first. An empty
// sessionID lists every session.
func (c *Client) ListPredictions(ctx context.Context, sessionID string, limit int) ([]models.PredictionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT p.id, p.session_id, p.overall_risk, p.risk_level, p.safety_status, p.attributes, p.result,
			p.latency_ms, p.created_at, COALESCE(f.rating, 0), COALESCE(f.comment, '')
		FROM predictions p
		LEFT JOIN feedback f ON f.prediction_id = p.id
		WHERE (? = '' OR p.session_id = ?)
		ORDER BY p.created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	records := make([]models.PredictionRecord, 0)
	for rows.Next() {
		var r models.PredictionRecord
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.OverallRisk,
			&r.RiskLevel,
			&r.SafetyStatus,
			&r.Attributes,
			&r.Result,
			&r.LatencyMS,
			&createdAt,
			&r.FeedbackRating,
			&r.FeedbackComment,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return records, nil
}

func (c *Client) exec(ctx context.Context, table, query string, args ...interface{}) error {
	err := retry.Do(ctx, c.retryCfg, func() error {
		_, err := c.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		metrics.ArchiveWriteFailures.WithLabelValues(table).Inc()
	}
	return err
}

// isBusy reports lock contention, the only write error worth retrying.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
