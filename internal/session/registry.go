package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/metrics"
	"github.com/riskassess/backend/pkg/logger"
)

var ErrNotFound = errors.New("session not found")

// Registry holds live sessions. When full, the least recently used session
// is discarded together with its history. Sessions exist only in the process
// that created them; replicas need requests routed by session id.
type Registry struct {
	sessions *lru.Cache[string, *Session]
	deps     *Deps
}

func NewRegistry(size int, deps Deps) (*Registry, error) {
	if deps.Assessor == nil {
		return nil, errors.New("session registry requires an assessor")
	}

	cache, err := lru.NewWithEvict[string, *Session](size, func(id string, _ *Session) {
		metrics.ActiveSessions.Dec()
		logger.Debug("Session discarded", zap.String("session_id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Registry{sessions: cache, deps: &deps}, nil
}

func (r *Registry) Create() *Session {
	s := New(uuid.New().String(), r.deps)
	r.sessions.Add(s.ID, s)
	metrics.ActiveSessions.Inc()

	logger.Info("Session created", zap.String("session_id", s.ID))
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove discards a session (logout). It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	return r.sessions.Remove(id)
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}
