// Package parser recovers a JSON object from free-form inference output.
//
// Strategies run in order and the first that yields an object wins. Each one
// strips a single layer of noise (surrounding prose, a code fence) and none
// of them repairs broken JSON.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrMalformedPayload matches every failure returned by Parse.
var ErrMalformedPayload = errors.New("response payload is malformed")

// MalformedError carries the unparseable text for diagnostics.
type MalformedError struct {
	Raw string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: no strategy recovered a JSON object from %d bytes", ErrMalformedPayload, len(e.Raw))
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// Strategy extracts an object from raw text, reporting false when it cannot.
type Strategy struct {
	Name    string
	Extract func(raw string) (map[string]any, bool)
}

const (
	StrategyDirect = "direct"
	StrategyFenced = "fenced"
	StrategyBraces = "braces"
)

// Strategies is the default cascade used by Parse.
var Strategies = []Strategy{
	{Name: StrategyDirect, Extract: Direct},
	{Name: StrategyFenced, Extract: Fenced},
	{Name: StrategyBraces, Extract: Braces},
}

// Result is the recovered object and the strategy that produced it.
type Result struct {
	Object   map[string]any
	Strategy string
}

func Parse(raw string) (*Result, error) {
	return ParseWith(raw, Strategies)
}

// ParseWith runs strategies in order and stops at the first success.
func ParseWith(raw string, strategies []Strategy) (*Result, error) {
	for _, s := range strategies {
		if obj, ok := s.Extract(raw); ok {
			return &Result{Object: obj, Strategy: s.Name}, nil
		}
	}
	return nil, &MalformedError{Raw: raw}
}

// Direct decodes the whole text.
func Direct(raw string) (map[string]any, bool) {
	return decodeObject(raw)
}

var fencePattern = regexp.MustCompile("(?s)```(?i:json)?[ \\t]*\\r?\\n?(.*?)```")

// Fenced decodes the interior of the first ``` fence.
func Fenced(raw string) (map[string]any, bool) {
	m := fencePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return decodeObject(m[1])
}

// Braces decodes the span from the first '{' to the last '}'.
func Braces(raw string) (map[string]any, bool) {
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return nil, false
	}
	return decodeObject(raw[first : last+1])
}

func decodeObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text[0] != '{' {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// trailing content means the text was not a single document
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}
