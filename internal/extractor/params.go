// Package extractor turns backend output into typed values: search parameters
// for a transcribed query, and the JSON coercion shared by every stage that
// asks the backend for structured output.
package extractor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"trace-go/internal/ai"
	"trace-go/internal/types"
)

const paramsPrompt = `You are the "Memory Retrieval Engine" for Trace. Transform this query into search parameters.

USER QUERY: "%s"

CURRENT TIME CONTEXT:
- Today is: %s
- Current time: %s
- Part of day: %s

DATABASE SCHEMA:
{
  "actions": ["string"],
  "actor": "you | others",
  "locations": ["string"],
  "objects": ["string"],
  "tags": ["string"],
  "summary": "string"
}

Return ONLY this JSON:
{
  "search_parameters": {
    "target_action": "action verb to search",
    "target_objects": ["objects to find"],
    "target_location": "location or null",
    "time_context": "today/morning/recent/unknown"
  }
}`

// DegradeRecorder counts fallbacks taken when backend output does not parse.
type DegradeRecorder interface {
	RecordDegraded(stage string)
}

type Extractor struct {
	gen     ai.Generator
	model   string
	metrics DegradeRecorder
	log     *logrus.Entry
}

func New(gen ai.Generator, model string, metrics DegradeRecorder, log *logrus.Entry) *Extractor {
	return &Extractor{gen: gen, model: model, metrics: metrics, log: log.WithField("component", "extractor")}
}

type paramsEnvelope struct {
	SearchParameters *types.SearchParameters `json:"search_parameters"`
}

// EmptyParams is the fallback used when the backend output does not parse.
func EmptyParams() types.SearchParameters {
	return types.SearchParameters{TargetObjects: []string{}}
}

// Extract asks the backend for structured search parameters. Unparseable
// output degrades to EmptyParams; only backend call failures are returned.
func (e *Extractor) Extract(ctx context.Context, transcription string, tc types.TimeContext) (types.SearchParameters, error) {
	prompt := fmt.Sprintf(paramsPrompt, transcription, tc.Date, tc.Time, tc.DayPart)

	raw, err := e.gen.Generate(ctx, ai.Request{Model: e.model, Prompt: prompt, Format: ai.FormatJSON})
	if err != nil {
		return types.SearchParameters{}, fmt.Errorf("extract search parameters: %w", err)
	}

	params, ok := ParseParams(raw)
	if !ok {
		e.log.WithField("raw", raw).Warn("search parameters did not parse, using empty parameters")
		if e.metrics != nil {
			e.metrics.RecordDegraded("extract")
		}
	}
	return params, nil
}

// ParseParams accepts either {"search_parameters": {...}} or the bare object.
func ParseParams(raw string) (types.SearchParameters, bool) {
	env := DecodeJSON[paramsEnvelope](raw)
	if !env.OK {
		return EmptyParams(), false
	}

	var params types.SearchParameters
	if env.Value.SearchParameters != nil {
		params = *env.Value.SearchParameters
	} else {
		bare := DecodeJSON[types.SearchParameters](raw)
		params = bare.Value
	}
	if params.TargetObjects == nil {
		params.TargetObjects = []string{}
	}
	return params, true
}
