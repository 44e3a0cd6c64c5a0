// Package assessment runs one submission through the pipeline: prompt,
// inference, parsing and normalization. Every failure comes back as a
// classified *Error and nothing partial is returned.
package assessment

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/llm"
	"github.com/riskassess/backend/internal/metrics"
	"github.com/riskassess/backend/internal/parser"
	"github.com/riskassess/backend/internal/patient"
	"github.com/riskassess/backend/internal/prediction"
	"github.com/riskassess/backend/internal/storage/models"
	"github.com/riskassess/backend/pkg/logger"
	"github.com/riskassess/backend/pkg/utils"
)

// Inference is the one suspension point of the pipeline.
type Inference interface {
	Invoke(ctx context.Context, prompt string, schema jsonschema.Definition, opts llm.Options) (string, error)
}

// DiagnosticsSink receives inference output that could not be parsed.
type DiagnosticsSink interface {
	RecordParseFailure(ctx context.Context, pf *models.ParseFailure) error
}

// maxLoggedRaw bounds the unparseable response text written to the log.
const maxLoggedRaw = 4096

type Option func(*Engine)

func WithDiagnostics(sink DiagnosticsSink) Option {
	return func(e *Engine) {
		e.diagnostics = sink
	}
}

func WithStrategies(strategies []parser.Strategy) Option {
	return func(e *Engine) {
		e.strategies = strategies
	}
}

type Engine struct {
	inference   Inference
	opts        llm.Options
	strategies  []parser.Strategy
	diagnostics DiagnosticsSink
}

// Outcome is a successful assessment with the prompt fingerprint and the
// time spent waiting on inference.
type Outcome struct {
	Result      *prediction.Result
	Strategy    string
	Fingerprint string
	Latency     time.Duration
}

func NewEngine(inference Inference, opts llm.Options, options ...Option) *Engine {
	e := &Engine{
		inference:  inference,
		opts:       opts,
		strategies: parser.Strategies,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Assess evaluates attrs for sessionID. The returned error is always an
// *Error.
func (e *Engine) Assess(ctx context.Context, sessionID string, attrs patient.Attributes) (*Outcome, error) {
	prompt := llm.BuildPrompt(attrs)
	fingerprint := utils.Fingerprint(prompt)

	logger.Info("Assessment started",
		zap.String("session_id", sessionID),
		zap.String("prompt_fingerprint", fingerprint),
	)

	start := time.Now()
	raw, err := e.inference.Invoke(ctx, prompt, llm.ResponseSchema(), e.opts)
	latency := time.Since(start)
	if err != nil {
		return nil, e.fail(sessionID, fingerprint, err)
	}

	parsed, err := parser.ParseWith(raw, e.strategies)
	if err != nil {
		classified := e.fail(sessionID, fingerprint, err)
		e.recordParseFailure(context.WithoutCancel(ctx), sessionID, fingerprint, classified.Raw)
		return nil, classified
	}
	metrics.ParseStrategyTotal.WithLabelValues(parsed.Strategy).Inc()

	result := prediction.Normalize(parsed.Object)
	observe(result)

	logger.Info("Assessment completed",
		zap.String("session_id", sessionID),
		zap.String("prediction_id", result.ID),
		zap.String("strategy", parsed.Strategy),
		zap.Float64("overall_risk", result.OverallRisk),
		zap.String("safety_status", string(result.SafetyStatus)),
		zap.Duration("latency", latency),
	)

	return &Outcome{
		Result:      result,
		Strategy:    parsed.Strategy,
		Fingerprint: fingerprint,
		Latency:     latency,
	}, nil
}

func (e *Engine) fail(sessionID, fingerprint string, err error) *Error {
	classified := Classify(err)
	metrics.FailuresTotal.WithLabelValues(string(classified.Kind)).Inc()

	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("prompt_fingerprint", fingerprint),
		zap.String("kind", string(classified.Kind)),
		zap.Error(err),
	}
	if classified.Raw != "" {
		fields = append(fields,
			zap.Int("raw_bytes", len(classified.Raw)),
			zap.String("raw", truncate(classified.Raw, maxLoggedRaw)),
		)
	}
	logger.Warn("Assessment failed", fields...)

	return classified
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (e *Engine) recordParseFailure(ctx context.Context, sessionID, fingerprint, raw string) {
	if e.diagnostics == nil {
		return
	}

	pf := &models.ParseFailure{
		ID:                uuid.New().String(),
		SessionID:         sessionID,
		PromptFingerprint: fingerprint,
		RawText:           raw,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.diagnostics.RecordParseFailure(ctx, pf); err != nil {
		logger.Error("Failed to record parse failure",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func observe(r *prediction.Result) {
	metrics.OverallRisk.Observe(r.OverallRisk)
	metrics.ResultsBySafety.WithLabelValues(string(r.SafetyStatus)).Inc()
	for _, m := range r.ModelOutputs {
		metrics.ModelConfidence.WithLabelValues(string(m.Type)).Observe(m.Confidence)
	}
}
