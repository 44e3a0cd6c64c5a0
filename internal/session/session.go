// Package session holds the per-user state of the assessment flow: the busy
// guard, the attributes being edited and the history of results.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/assessment"
	"github.com/riskassess/backend/internal/history"
	"github.com/riskassess/backend/internal/metrics"
	"github.com/riskassess/backend/internal/patient"
	"github.com/riskassess/backend/internal/prediction"
	"github.com/riskassess/backend/internal/storage/models"
	"github.com/riskassess/backend/pkg/logger"
)

// ErrBusy is returned when a submission is already running for the session.
var ErrBusy = errors.New("an assessment is already in progress for this session")

const DefaultLockTTL = 2 * time.Minute

type Assessor interface {
	Assess(ctx context.Context, sessionID string, attrs patient.Attributes) (*assessment.Outcome, error)
}

// Archive persists results beyond the in-memory history.
type Archive interface {
	SavePrediction(ctx context.Context, rec *models.PredictionRecord) error
	SaveFeedback(ctx context.Context, fb *models.FeedbackRecord) error
}

// Lock is taken alongside the busy flag. Sessions are per process, so it only
// contends when two processes hold the same session id.
type Lock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Counter interface {
	IncrementMetric(ctx context.Context, name string) error
}

// Deps are shared by every session of a registry. Only Assessor is required.
type Deps struct {
	Assessor        Assessor
	Archive         Archive
	Lock            Lock
	Counter         Counter
	HistoryCapacity int
	LockTTL         time.Duration
}

type Session struct {
	ID        string
	CreatedAt time.Time

	deps  *Deps
	busy  atomic.Bool
	store *history.Store

	mu    sync.RWMutex
	attrs patient.Attributes
}

func New(id string, deps *Deps) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		deps:      deps,
		store:     history.NewStore(history.WithCapacity(deps.HistoryCapacity)),
		attrs:     patient.Default(),
	}
}

// Submit assesses attrs and records the result. A second call while one is
// running fails with ErrBusy; it is neither queued nor merged.
func (s *Session) Submit(ctx context.Context, attrs patient.Attributes) (prediction.Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.BusyRejections.Inc()
		metrics.SubmissionsTotal.WithLabelValues("busy").Inc()
		return prediction.Result{}, ErrBusy
	}
	defer s.busy.Store(false)

	release, err := s.acquire(ctx)
	if err != nil {
		return prediction.Result{}, err
	}
	defer release()

	s.SetAttributes(attrs)

	out, err := s.deps.Assessor.Assess(ctx, s.ID, attrs)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
		return prediction.Result{}, err
	}

	s.store.Record(out.Result)
	metrics.SubmissionsTotal.WithLabelValues("success").Inc()

	// archiving outlives the request
	bg := context.WithoutCancel(ctx)
	s.archivePrediction(bg, attrs, out)
	s.count(bg, "assessments")

	return *out.Result, nil
}

func (s *Session) acquire(ctx context.Context) (func(), error) {
	if s.deps.Lock == nil {
		return func() {}, nil
	}

	ttl := s.deps.LockTTL
	if ttl == 0 {
		ttl = DefaultLockTTL
	}

	token, ok, err := s.deps.Lock.Acquire(ctx, s.ID, ttl)
	if err != nil {
		// the local guard still holds; losing the shared lock is not fatal
		logger.Warn("Submission lock unavailable", zap.String("session_id", s.ID), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		metrics.BusyRejections.Inc()
		metrics.SubmissionsTotal.WithLabelValues("busy").Inc()
		return nil, ErrBusy
	}

	return func() {
		if err := s.deps.Lock.Release(context.Background(), s.ID, token); err != nil {
			logger.Warn("Failed to release submission lock", zap.String("session_id", s.ID), zap.Error(err))
		}
	}, nil
}

func (s *Session) archivePrediction(ctx context.Context, attrs patient.Attributes, out *assessment.Outcome) {
	if s.deps.Archive == nil {
		return
	}

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		logger.Error("Failed to encode attributes", zap.Error(err))
		return
	}
	resultJSON, err := json.Marshal(out.Result)
	if err != nil {
		logger.Error("Failed to encode result", zap.Error(err))
		return
	}

	rec := &models.PredictionRecord{
		ID:           out.Result.ID,
		SessionID:    s.ID,
		OverallRisk:  out.Result.OverallRisk,
		RiskLevel:    string(out.Result.RiskLevel),
		SafetyStatus: string(out.Result.SafetyStatus),
		Attributes:   string(attrsJSON),
		Result:       string(resultJSON),
		LatencyMS:    int(out.Latency.Milliseconds()),
		CreatedAt:    out.Result.Timestamp,
	}
	if err := s.deps.Archive.SavePrediction(ctx, rec); err != nil {
		logger.Error("Failed to archive prediction",
			zap.String("session_id", s.ID),
			zap.String("prediction_id", rec.ID),
			zap.Error(err),
		)
	}
}

func (s *Session) count(ctx context.Context, name string) {
	if s.deps.Counter == nil {
		return
	}
	if err := s.deps.Counter.IncrementMetric(ctx, name); err != nil {
		logger.Debug("Failed to increment shared counter", zap.String("name", name), zap.Error(err))
	}
}

// AttachFeedback rates a result in this session's history and returns the
// updated entry.
func (s *Session) AttachFeedback(ctx context.Context, predictionID string, rating int, comment string) (prediction.Result, error) {
	if err := s.store.AttachFeedback(predictionID, rating, comment); err != nil {
		return prediction.Result{}, err
	}

	updated, ok := s.store.Get(predictionID)
	if !ok {
		return prediction.Result{}, history.ErrNotFound
	}
	metrics.FeedbackRating.Observe(float64(rating))

	if s.deps.Archive != nil {
		fb := &models.FeedbackRecord{
			PredictionID: predictionID,
			SessionID:    s.ID,
			Rating:       updated.Feedback.Rating,
			Comment:      updated.Feedback.Comment,
			CreatedAt:    updated.Feedback.Timestamp,
		}
		if err := s.deps.Archive.SaveFeedback(context.WithoutCancel(ctx), fb); err != nil {
			logger.Error("Failed to archive feedback",
				zap.String("session_id", s.ID),
				zap.String("prediction_id", predictionID),
				zap.Error(err),
			)
		}
	}

	return updated, nil
}

func (s *Session) History() []prediction.Result {
	return s.store.List()
}

func (s *Session) Current() (prediction.Result, bool) {
	return s.store.Current()
}

func (s *Session) Select(predictionID string) (prediction.Result, error) {
	return s.store.Select(predictionID)
}

func (s *Session) ClearCurrent() {
	s.store.ClearCurrent()
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Attributes returns the values last submitted or imported.
func (s *Session) Attributes() patient.Attributes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attrs
}

func (s *Session) SetAttributes(attrs patient.Attributes) {
	s.mu.Lock()
	s.attrs = attrs
	s.mu.Unlock()
}
