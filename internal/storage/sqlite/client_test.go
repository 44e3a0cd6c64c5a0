package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskassess/backend/internal/storage/models"
)

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := NewClientWithDB(db)
	c.retryCfg.InitialDelay = time.Millisecond
	c.retryCfg.MaxDelay = time.Millisecond
	return c, mock
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "data/risk.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", dsn("data/risk.db"))
}

func TestNewClient_PragmasOnEveryConnection(t *testing.T) {
	c, err := NewClient(filepath.Join(t.TempDir(), "nested", "risk.db"))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	first, err := c.db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := c.db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		var enabled int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
		assert.Equal(t, 1, enabled)
	}
}

func TestInitSchema(t *testing.T) {
	c, mock := setupTestDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS predictions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.InitSchema())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePrediction(t *testing.T) {
	c, mock := setupTestDB(t)

	rec := &models.PredictionRecord{
		ID:           "p1",
		SessionID:    "s1",
		OverallRisk:  42,
		RiskLevel:    "Moderate",
		SafetyStatus: "Monitor",
		Attributes:   `{"glucose":150}`,
		Result:       `{"id":"p1"}`,
		LatencyMS:    1200,
		CreatedAt:    created,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO predictions")).
		WithArgs("p1", "s1", 42.0, "Moderate", "Monitor", `{"glucose":150}`, `{"id":"p1"}`, 1200, created.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, c.SavePrediction(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePrediction_RetriesWhenBusy(t *testing.T) {
	c, mock := setupTestDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO predictions")).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO predictions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.SavePrediction(context.Background(), &models.PredictionRecord{ID: "p1", CreatedAt: created})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePrediction_DoesNotRetryOtherErrors(t *testing.T) {
	c, mock := setupTestDB(t)
	boom := errors.New("constraint failed")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO predictions")).
		WillReturnError(boom)

	err := c.SavePrediction(context.Background(), &models.PredictionRecord{ID: "p1", CreatedAt: created})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveFeedback_Upserts(t *testing.T) {
	c, mock := setupTestDB(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT(prediction_id) DO UPDATE")).
		WithArgs("p1", "s1", 4, "ok", created.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.SaveFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: "p1",
		SessionID:    "s1",
		Rating:       4,
		Comment:      "ok",
		CreatedAt:    created,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordParseFailure(t *testing.T) {
	c, mock := setupTestDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO parse_failures")).
		WithArgs("f1", "s1", "abcd", "not json", created.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.RecordParseFailure(context.Background(), &models.ParseFailure{
		ID:                "f1",
		SessionID:         "s1",
		PromptFingerprint: "abcd",
		RawText:           "not json",
		CreatedAt:         created,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPredictions(t *testing.T) {
	c, mock := setupTestDB(t)

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "overall_risk", "risk_level", "safety_status", "attributes", "result",
		"latency_ms", "created_at", "rating", "comment",
	}).
		AddRow("p2", "s1", 70.0, "High", "Critical", "{}", "{}", 900, created.Unix()+60, 5, "great").
		AddRow("p1", "s1", 20.0, "Low", "Safe", "{}", "{}", 800, created.Unix(), 0, "")

	mock.ExpectQuery("SELECT (.+) FROM predictions p").
		WithArgs("s1", "s1", 10).
		WillReturnRows(rows)

	records, err := c.ListPredictions(context.Background(), "s1", 10)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p2", records[0].ID)
	assert.Equal(t, 5, records[0].FeedbackRating)
	assert.Equal(t, "great", records[0].FeedbackComment)
	assert.Equal(t, created, records[1].CreatedAt)
	assert.Equal(t, 0, records[1].FeedbackRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPredictions_LimitBounds(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default", limit: 0, want: DefaultListLimit},
		{name: "capped", limit: 10000, want: MaxListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := setupTestDB(t)

			mock.ExpectQuery("SELECT (.+) FROM predictions p").
				WithArgs("", "", tt.want).
				WillReturnRows(sqlmock.NewRows([]string{"id"}))

			records, err := c.ListPredictions(context.Background(), "", tt.limit)

			require.NoError(t, err)
			assert.Empty(t, records)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListPredictions_QueryError(t *testing.T) {
	c, mock := setupTestDB(t)

	mock.ExpectQuery("SELECT (.+) FROM predictions p").
		WillReturnError(sql.ErrConnDone)

	_, err := c.ListPredictions(context.Background(), "s1", 5)

	assert.ErrorIs(t, err, sql.ErrConnDone)
}
