package models

import "time"

// PredictionRecord is the archived form of one assessment. Attributes and
// Result hold the JSON documents as submitted and returned.
type PredictionRecord struct {
	ID           string
	SessionID    string
	OverallRisk  float64
	RiskLevel    string
	SafetyStatus string
	Attributes   string
	Result       string
	LatencyMS    int
	CreatedAt    time.Time

	// filled by ListPredictions from the feedback table
	FeedbackRating  int
	FeedbackComment string
}

type FeedbackRecord struct {
	PredictionID string
	SessionID    string
	Rating       int
	Comment      string
	CreatedAt    time.Time
}

// ParseFailure keeps inference output that no parser strategy could read.
type ParseFailure struct {
	ID                string
	SessionID         string
	PromptFingerprint string
	RawText           string
	CreatedAt         time.Time
}
