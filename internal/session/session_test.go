package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/riskassess/backend/internal/assessment"
	"github.com/riskassess/backend/internal/history"
	"github.com/riskassess/backend/internal/patient"
	"github.com/riskassess/backend/internal/prediction"
	"github.com/riskassess/backend/internal/storage/models"
)

type MockAssessor struct {
	mock.Mock
}

func (m *MockAssessor) Assess(ctx context.Context, sessionID string, attrs patient.Attributes) (*assessment.Outcome, error) {
	args := m.Called(ctx, sessionID, attrs)
	out, _ := args.Get(0).(*assessment.Outcome)
	return out, args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) SavePrediction(ctx context.Context, rec *models.PredictionRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockArchive) SaveFeedback(ctx context.Context, fb *models.FeedbackRecord) error {
	return m.Called(ctx, fb).Error(0)
}

type MockLock struct {
	mock.Mock
}

func (m *MockLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLock) Release(ctx context.Context, key, token string) error {
	return m.Called(ctx, key, token).Error(0)
}

// blockingAssessor holds every call until release is closed.
type blockingAssessor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingAssessor) Assess(ctx context.Context, sessionID string, attrs patient.Attributes) (*assessment.Outcome, error) {
	close(b.started)
	<-b.release
	return outcome("late"), nil
}

func outcome(id string) *assessment.Outcome {
	return &assessment.Outcome{
		Result: &prediction.Result{
			ID:                id,
			Timestamp:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			OverallRisk:       30,
			RiskLevel:         prediction.RiskModerate,
			SafetyStatus:      prediction.SafetySafe,
			ModelOutputs:      []prediction.ModelOutput{},
			KeyFactors:        []string{},
			FeatureImportance: []prediction.FeatureContribution{},
			Recommendations:   []string{},
		},
		Strategy:    "direct",
		Fingerprint: "0123456789abcdef",
		Latency:     1500 * time.Millisecond,
	}
}

func TestSubmit_RecordsResult(t *testing.T) {
	assessor := new(MockAssessor)
	archive := new(MockArchive)
	attrs := patient.Default()
	attrs.Glucose = 180

	assessor.On("Assess", mock.Anything, "s1", attrs).Return(outcome("A"), nil).Once()
	archive.On("SavePrediction", mock.Anything, mock.MatchedBy(func(rec *models.PredictionRecord) bool {
		return rec.ID == "A" && rec.SessionID == "s1" && rec.LatencyMS == 1500 && rec.Attributes != ""
	})).Return(nil).Once()

	s := New("s1", &Deps{Assessor: assessor, Archive: archive})
	res, err := s.Submit(context.Background(), attrs)

	require.NoError(t, err)
	assert.Equal(t, "A", res.ID)
	assert.Equal(t, attrs, s.Attributes())
	assert.False(t, s.Busy())

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "A", cur.ID)
	assert.Len(t, s.History(), 1)

	assessor.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestSubmit_FailureRecordsNothing(t *testing.T) {
	assessor := new(MockAssessor)
	classified := assessment.Classify(errors.New("boom"))
	assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(nil, classified)

	archive := new(MockArchive)
	s := New("s1", &Deps{Assessor: assessor, Archive: archive})

	_, err := s.Submit(context.Background(), patient.Default())

	assert.ErrorIs(t, err, classified)
	assert.Empty(t, s.History())
	_, ok := s.Current()
	assert.False(t, ok)
	assert.False(t, s.Busy(), "busy flag must clear on failure")
	archive.AssertNotCalled(t, "SavePrediction", mock.Anything, mock.Anything)
}

func TestSubmit_BusyRejectsSecond(t *testing.T) {
	blocking := &blockingAssessor{started: make(chan struct{}), release: make(chan struct{})}
	s := New("s1", &Deps{Assessor: blocking})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), patient.Default())
		done <- err
	}()

	<-blocking.started
	assert.True(t, s.Busy())

	_, err := s.Submit(context.Background(), patient.Default())
	assert.ErrorIs(t, err, ErrBusy)

	close(blocking.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Len(t, s.History(), 1)
}

func TestSubmit_SharedLock(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		assessor := new(MockAssessor)
		lock := new(MockLock)
		lock.On("Acquire", mock.Anything, "s1", DefaultLockTTL).Return("", false, nil)

		s := New("s1", &Deps{Assessor: assessor, Lock: lock})
		_, err := s.Submit(context.Background(), patient.Default())

		assert.ErrorIs(t, err, ErrBusy)
		assert.False(t, s.Busy())
		assessor.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("acquired and released", func(t *testing.T) {
		assessor := new(MockAssessor)
		lock := new(MockLock)
		assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(outcome("A"), nil)
		lock.On("Acquire", mock.Anything, "s1", time.Minute).Return("tok", true, nil).Once()
		lock.On("Release", mock.Anything, "s1", "tok").Return(nil).Once()

		s := New("s1", &Deps{Assessor: assessor, Lock: lock, LockTTL: time.Minute})
		_, err := s.Submit(context.Background(), patient.Default())

		require.NoError(t, err)
		lock.AssertExpectations(t)
	})

	t.Run("lock backend down", func(t *testing.T) {
		assessor := new(MockAssessor)
		lock := new(MockLock)
		assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(outcome("A"), nil)
		lock.On("Acquire", mock.Anything, "s1", DefaultLockTTL).Return("", false, errors.New("connection refused"))

		s := New("s1", &Deps{Assessor: assessor, Lock: lock})
		_, err := s.Submit(context.Background(), patient.Default())

		require.NoError(t, err)
		lock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAttachFeedback(t *testing.T) {
	assessor := new(MockAssessor)
	archive := new(MockArchive)
	assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(outcome("A"), nil).Once()
	assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(outcome("B"), nil).Once()
	archive.On("SavePrediction", mock.Anything, mock.Anything).Return(nil)
	archive.On("SaveFeedback", mock.Anything, mock.MatchedBy(func(fb *models.FeedbackRecord) bool {
		return fb.PredictionID == "A" && fb.Rating == 4 && fb.Comment == "ok" && !fb.CreatedAt.IsZero()
	})).Return(nil).Once()

	s := New("s1", &Deps{Assessor: assessor, Archive: archive})
	_, err := s.Submit(context.Background(), patient.Default())
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), patient.Default())
	require.NoError(t, err)

	updated, err := s.AttachFeedback(context.Background(), "A", 4, "ok")
	require.NoError(t, err)
	require.NotNil(t, updated.Feedback)
	assert.Equal(t, 4, updated.Feedback.Rating)

	list := s.History()
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].ID)
	assert.Nil(t, list[0].Feedback)
	assert.NotNil(t, list[1].Feedback)

	_, err = s.AttachFeedback(context.Background(), "missing", 4, "")
	assert.ErrorIs(t, err, history.ErrNotFound)

	_, err = s.AttachFeedback(context.Background(), "A", 9, "")
	assert.ErrorIs(t, err, history.ErrInvalidRating)

	archive.AssertExpectations(t)
}

func TestSelectAndClear(t *testing.T) {
	assessor := new(MockAssessor)
	assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(outcome("A"), nil).Once()
	assessor.On("Assess", mock.Anything, "s1", mock.Anything).Return(outcome("B"), nil).Once()

	s := New("s1", &Deps{Assessor: assessor})
	_, _ = s.Submit(context.Background(), patient.Default())
	_, _ = s.Submit(context.Background(), patient.Default())

	sel, err := s.Select("A")
	require.NoError(t, err)
	assert.Equal(t, "A", sel.ID)

	s.ClearCurrent()
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Len(t, s.History(), 2)
}

func TestNew_DefaultAttributes(t *testing.T) {
	s := New("s1", &Deps{Assessor: new(MockAssessor)})

	assert.Equal(t, patient.Default(), s.Attributes())
	assert.False(t, s.CreatedAt.IsZero())
}
