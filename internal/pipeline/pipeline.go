// Package pipeline runs one voice query end to end: transcription, topic
// check, parameter extraction, matching, reply composition and speech.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trace-go/internal/composer"
	"trace-go/internal/extractor"
	"trace-go/internal/matcher"
	"trace-go/internal/telemetry"
	"trace-go/internal/types"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, mimeType, displayName string) (types.TranscriptionResult, error)
	Release(ctx context.Context, fileRef string)
}

type ParamExtractor interface {
	Extract(ctx context.Context, transcription string, tc types.TimeContext) (types.SearchParameters, error)
}

type RecordLister interface {
	ListAll(ctx context.Context) ([]types.AnalysisRecord, error)
}

type Responder interface {
	Found(ctx context.Context, transcription string, match types.ScoredMatch, tc types.TimeContext, now time.Time) (string, error)
	NotFound(ctx context.Context, transcription string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) []byte
}

// Recorder receives pipeline measurements. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	RecordQuery(outcome string)
	RecordResponse(responseType string)
}

// Deps are the collaborators of an Orchestrator. Clock, Location, Metrics and
// Tracer are optional.
type Deps struct {
	Transcriber Transcriber
	Extractor   ParamExtractor
	Records     RecordLister
	Responder   Responder
	Synthesizer Synthesizer
	Metrics     Recorder
	Tracer      trace.Tracer
	Clock       func() time.Time
	Location    *time.Location
	Log         *logrus.Entry
}

type Orchestrator struct {
	transcriber Transcriber
	extractor   ParamExtractor
	records     RecordLister
	responder   Responder
	synthesizer Synthesizer
	metrics     Recorder
	tracer      trace.Tracer
	now         func() time.Time
	loc         *time.Location
	log         *logrus.Entry
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		transcriber: d.Transcriber,
		extractor:   d.Extractor,
		records:     d.Records,
		responder:   d.Responder,
		synthesizer: d.Synthesizer,
		metrics:     d.Metrics,
		tracer:      d.Tracer,
		now:         d.Clock,
		loc:         d.Location,
		log:         d.Log,
	}
	if o.metrics == nil {
		o.metrics = nopRecorder{}
	}
	if o.tracer == nil {
		o.tracer = telemetry.Tracer()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	o.log = o.log.WithField("component", "pipeline")
	return o
}

// Request identifies the uploaded audio for one query.
type Request struct {
	AudioPath   string
	MimeType    string
	DisplayName string
}

type run struct {
	o       *Orchestrator
	ctx     context.Context
	span    trace.Span
	emitter Emitter
	log     *logrus.Entry
	state   State
	start   time.Time
	tc      types.TimeContext

	fileRef     string
	releaseOnce sync.Once
}

// Run executes the query and streams its events to emitter: transcription,
// then response and done, or error as the last event. The returned result is
// the payload of the response event.
func (o *Orchestrator) Run(ctx context.Context, req Request, emitter Emitter) (*types.QueryResult, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.query", trace.WithAttributes(
		attribute.String("query.file", req.DisplayName),
		attribute.String("query.mime_type", req.MimeType),
	))
	defer span.End()

	start := o.now().In(o.loc)
	r := &run{
		o:       o,
		ctx:     ctx,
		span:    span,
		emitter: emitter,
		log:     o.log.WithField("file", req.DisplayName),
		state:   StateReceived,
		start:   start,
		tc:      extractor.BuildTimeContext(start),
	}
	defer r.release()

	result, err := r.execute(req)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	return result, nil
}

func (r *run) execute(req Request) (*types.QueryResult, error) {
	r.transition(StateTranscribing)
	var transcript types.TranscriptionResult
	err := r.stage("transcribe", func(ctx context.Context) error {
		var err error
		transcript, err = r.o.transcriber.Transcribe(ctx, req.AudioPath, req.MimeType, req.DisplayName)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.fileRef = transcript.FileRef
	r.span.SetAttributes(
		attribute.String("query.topic", string(transcript.TopicCategory)),
		attribute.Bool("query.relevant", transcript.IsRelevant),
	)

	r.emit(EventTranscription, types.TranscriptionEvent{
		Success:       true,
		UserQuery:     transcript.Transcription,
		TopicCategory: transcript.TopicCategory,
		IsRelevant:    transcript.IsRelevant,
		Timestamp:     r.start,
	})

	var (
		text       string
		kind       types.ResponseType
		params     *types.SearchParameters
		matchCount *int
	)

	if transcript.OffTopic() {
		r.transition(StateOffTopic)
		r.release()
		text, kind = composer.OffTopicReply, types.ResponseOffTopic
	} else {
		r.transition(StateSearching)
		p, matches, err := r.search(transcript.Transcription)
		r.release()
		if err != nil {
			return nil, err
		}
		n := len(matches)
		params, matchCount = &p, &n

		r.transition(StateComposing)
		text, kind, err = r.compose(transcript.Transcription, matches)
		if err != nil {
			return nil, err
		}
	}

	r.transition(StateSynthesizing)
	var audio []byte
	r.measure("synthesize", func(ctx context.Context) {
		audio = r.o.synthesizer.Synthesize(ctx, text)
	})

	finished := r.o.now().In(r.o.loc)
	result := &types.QueryResult{
		Success:      true,
		Duration:     fmt.Sprintf("%.2fs", finished.Sub(r.start).Seconds()),
		Timestamp:    r.start,
		UserQuery:    transcript.Transcription,
		SearchParams: params,
		MatchCount:   matchCount,
		Response:     types.AssistantResponse{Text: text, Type: kind, Audio: audio},
		Conversation: types.Conversation{
			User:      types.ConversationTurn{Text: transcript.Transcription, Timestamp: r.start},
			Assistant: types.ConversationTurn{Text: text, Type: kind, Timestamp: finished},
		},
	}

	r.transition(StateCompleted)
	r.o.metrics.RecordQuery(string(StateCompleted))
	r.o.metrics.RecordResponse(string(kind))
	r.span.SetAttributes(attribute.String("query.response_type", string(kind)))
	r.log.WithFields(logrus.Fields{
		"duration": result.Duration,
		"type":     kind,
		"audio":    audio != nil,
	}).Info("query processed")

	r.emit(EventResponse, result)
	r.emit(EventDone, struct{}{})
	return result, nil
}

func (r *run) search(transcription string) (types.SearchParameters, []types.ScoredMatch, error) {
	var params types.SearchParameters
	err := r.stage("extract", func(ctx context.Context) error {
		var err error
		params, err = r.o.extractor.Extract(ctx, transcription, r.tc)
		return err
	})
	if err != nil {
		return params, nil, err
	}

	var matches []types.ScoredMatch
	err = r.stage("match", func(ctx context.Context) error {
		corpus, err := r.o.records.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		matches = matcher.Match(params, corpus)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("match.corpus_size", len(corpus)),
			attribute.Int("match.count", len(matches)),
		)
		return nil
	})
	if err != nil {
		return params, nil, err
	}

	r.log.WithFields(logrus.Fields{
		"action":   params.Action(),
		"objects":  params.TargetObjects,
		"location": params.Location(),
		"matches":  len(matches),
	}).Info("search finished")
	return params, matches, nil
}

func (r *run) compose(transcription string, matches []types.ScoredMatch) (string, types.ResponseType, error) {
	var (
		text string
		kind types.ResponseType
	)
	err := r.stage("compose", func(ctx context.Context) error {
		var err error
		if best, ok := matcher.Best(matches); ok {
			kind = types.ResponseFound
			text, err = r.o.responder.Found(ctx, transcription, best, r.tc, r.start)
			return err
		}
		kind = types.ResponseNotFound
		text, err = r.o.responder.NotFound(ctx, transcription)
		return err
	})
	return text, kind, err
}

// stage runs fn inside a child span and records its latency.
func (r *run) stage(name string, fn func(ctx context.Context) error) error {
	var err error
	r.measure(name, func(ctx context.Context) {
		if err = fn(ctx); err != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	})
	return err
}

// measure is stage for steps that absorb their own failures.
func (r *run) measure(name string, fn func(ctx context.Context)) {
	ctx, span := r.o.tracer.Start(r.ctx, "pipeline."+name)
	defer span.End()

	began := time.Now()
	fn(ctx)
	r.o.metrics.ObserveStage(name, time.Since(began))
}

func (r *run) transition(next State) {
	r.log.WithFields(logrus.Fields{"from": r.state, "to": next}).Debug("state transition")
	r.span.AddEvent(string(next))
	r.state = next
}

// release deletes the remote upload at most once.
func (r *run) release() {
	r.releaseOnce.Do(func() {
		if r.fileRef != "" {
			r.o.transcriber.Release(r.ctx, r.fileRef)
		}
	})
}

func (r *run) fail(err error) {
	r.transition(StateErrored)
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.o.metrics.RecordQuery(string(StateErrored))
	r.log.WithError(err).Error("query failed")

	r.emit(EventError, types.ErrorEvent{Success: false, Error: err.Error(), Timestamp: r.start})
}

func (r *run) emit(event Event, data any) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.Emit(event, data); err != nil {
		r.log.WithError(err).WithField("event", event).Warn("unable to deliver event")
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) RecordQuery(string)                 {}
func (nopRecorder) RecordResponse(string)              {}
