// Package processor analyzes uploaded first-person video and stores the
// result as an analysis record for later voice queries.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trace-go/internal/ai"
	"trace-go/internal/extractor"
	"trace-go/internal/media"
	"trace-go/internal/types"
)

const analysisPrompt = `You are an expert video analyst. The footage is captured from smart glasses, so the viewpoint is "you". Determine whether "you" are performing the main action or if other people are doing it. Return JSON with this structure:
{
  "summary": "You have... (short sentence describing what happens from first-person perspective)",
  "actions": ["main action verb", "secondary action if any"],
  "objects": ["list", "of", "visible", "objects"],
  "locations": ["the location or environment of the scene"],
  "context": {
    "before": "what likely happened before this scene",
    "after": "what will likely happen next"
  },
  "confidence": 0.85,
  "tags": ["relevant", "search", "tags"]
}

Return ONLY the JSON, no extra text.`

type Backend interface {
	ai.Files
	ai.Generator
}

type RecordInserter interface {
	Insert(ctx context.Context, rec types.AnalysisRecord) (string, error)
}

type Recorder interface {
	RecordVideoAnalysis(outcome string)
	RecordDegraded(stage string)
}

// VideoResult is the response body of a single video analysis.
type VideoResult struct {
	Success     bool            `json:"success"`
	SentAt      time.Time       `json:"sentAt"`
	Duration    string          `json:"duration,omitempty"`
	Filename    string          `json:"filename"`
	Filesize    string          `json:"filesize,omitempty"`
	Analysis    *types.Analysis `json:"analysis,omitempty"`
	TracebackID string          `json:"tracebackId,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type Processor struct {
	backend Backend
	records RecordInserter
	model   string
	poll    ai.PollConfig
	metrics Recorder
	now     func() time.Time
	log     *logrus.Entry
}

func New(backend Backend, records RecordInserter, model string, poll ai.PollConfig, metrics Recorder, log *logrus.Entry) *Processor {
	return &Processor{
		backend: backend,
		records: records,
		model:   model,
		poll:    poll,
		metrics: metrics,
		now:     time.Now,
		log:     log.WithField("component", "video"),
	}
}

// ProcessFile uploads the video, waits for the backend to ingest it, asks for
// a structured analysis and stores it. The remote upload is always deleted.
func (p *Processor) ProcessFile(ctx context.Context, u media.Upload) (VideoResult, error) {
	start := p.now()
	res := VideoResult{SentAt: start, Filename: u.OriginalName, Filesize: u.SizeLabel()}
	log := p.log.WithField("file", u.OriginalName)

	log.Info("uploading video")
	uploaded, err := p.backend.Upload(ctx, u.Path, u.MimeType, u.OriginalName)
	if err != nil {
		return p.failed(res, fmt.Errorf("%w: %v", ai.ErrUpload, err))
	}
	defer func() {
		releaseCtx, cancel := ai.ReleaseContext(ctx)
		defer cancel()
		if err := p.backend.Delete(releaseCtx, uploaded.Name); err != nil {
			log.WithError(err).Warn("unable to delete remote file")
		}
	}()

	active, err := ai.WaitForActive(ctx, p.backend, uploaded.Name, p.poll)
	if err != nil {
		return p.failed(res, err)
	}

	raw, err := p.backend.Generate(ctx, ai.Request{Model: p.model, Prompt: analysisPrompt, File: active, Format: ai.FormatJSON})
	if err != nil {
		return p.failed(res, fmt.Errorf("analyze video: %w", err))
	}

	analysis, ok := ParseAnalysis(raw)
	if !ok {
		log.Warn("video analysis did not parse, keeping raw response")
		if p.metrics != nil {
			p.metrics.RecordDegraded("video")
		}
	}

	res.Success = true
	res.Analysis = &analysis
	res.Duration = fmt.Sprintf("%.2fs", p.now().Sub(start).Seconds())

	id, err := p.records.Insert(ctx, types.AnalysisRecord{
		SentAt:   res.SentAt,
		Filename: res.Filename,
		Filesize: res.Filesize,
		Duration: res.Duration,
		Analysis: analysis,
	})
	if err != nil {
		return p.failed(res, fmt.Errorf("store analysis: %w", err))
	}
	res.TracebackID = id

	if p.metrics != nil {
		p.metrics.RecordVideoAnalysis("stored")
	}
	log.WithFields(logrus.Fields{"id": id, "duration": res.Duration}).Info("video analyzed")
	return res, nil
}

func (p *Processor) failed(res VideoResult, err error) (VideoResult, error) {
	if p.metrics != nil {
		p.metrics.RecordVideoAnalysis("failed")
	}
	res.Success = false
	res.Analysis = nil
	res.Duration = ""
	res.Error = err.Error()
	p.log.WithError(err).WithField("file", res.Filename).Error("video analysis failed")
	return res, err
}

// ParseAnalysis decodes the backend's analysis. Output that does not parse is
// kept verbatim in RawResponse.
func ParseAnalysis(raw string) (types.Analysis, bool) {
	d := extractor.DecodeJSON[types.Analysis](raw)
	if !d.OK {
		return types.Analysis{RawResponse: raw}, false
	}
	return d.Value, true
}
