package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trace-go/internal/ai"
	"trace-go/internal/ai/aitest"
	"trace-go/internal/composer"
	"trace-go/internal/extractor"
	"trace-go/internal/speech"
	"trace-go/internal/store"
	"trace-go/internal/transcription"
	"trace-go/internal/types"
)

var requestTime = time.Date(2026, time.October, 16, 9, 15, 0, 0, time.UTC)

type recorded struct {
	event Event
	data  any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recorded
}

func (e *recordingEmitter) Emit(event Event, data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recorded{event, data})
	return nil
}

func (e *recordingEmitter) names() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.event)
	}
	return out
}

type countingLister struct {
	records []types.AnalysisRecord
	err     error
	calls   int
}

func (c *countingLister) ListAll(context.Context) ([]types.AnalysisRecord, error) {
	c.calls++
	return c.records, c.err
}

// script answers each stage of the pipeline from one fake backend.
type script struct {
	transcription string
	params        string
	reply         string
	replyErr      error
	extractErr    error
}

func (s script) generate(req ai.Request) (string, error) {
	switch {
	case req.File != nil:
		return s.transcription, nil
	case req.Format == ai.FormatJSON:
		return s.params, s.extractErr
	default:
		return s.reply, s.replyErr
	}
}

type harness struct {
	fake    *aitest.Fake
	records RecordLister
	emitter *recordingEmitter
	orch    *Orchestrator
}

func newHarness(t *testing.T, sc script, records RecordLister) *harness {
	t.Helper()
	l, _ := logtest.NewNullLogger()
	log := logrus.NewEntry(l)

	fake := &aitest.Fake{GenerateFunc: sc.generate, Audio: []byte("RIFF")}
	poll := ai.PollConfig{Interval: time.Second, MaxAttempts: 30, Sleep: aitest.NoSleep}

	orch := New(Deps{
		Transcriber: transcription.New(fake, "transcribe", poll, nil, log),
		Extractor:   extractor.New(fake, "query", nil, log),
		Records:     records,
		Responder:   composer.New(fake, "query", time.UTC, log),
		Synthesizer: speech.New(fake, nil, log),
		Clock:       func() time.Time { return requestTime },
		Location:    time.UTC,
		Log:         log,
	})
	return &harness{fake: fake, records: records, emitter: &recordingEmitter{}, orch: orch}
}

func (h *harness) run(t *testing.T) (*types.QueryResult, error) {
	t.Helper()
	return h.orch.Run(context.Background(), Request{AudioPath: "/tmp/q.wav", MimeType: "audio/wav", DisplayName: "q.wav"}, h.emitter)
}

func keysCorpus(t *testing.T) RecordLister {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Insert(context.Background(), types.AnalysisRecord{
		SentAt: requestTime.Add(-24 * time.Hour),
		Analysis: types.Analysis{
			Summary: "You set your car keys down by the door.",
			Actions: []string{"left"},
			Objects: []string{"car keys"},
		},
	})
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), types.AnalysisRecord{
		SentAt:   requestTime.Add(-2 * time.Hour),
		Analysis: types.Analysis{Actions: []string{"drank"}, Objects: []string{"water bottle"}},
	})
	require.NoError(t, err)
	return s
}

func TestKeysScenarioFound(t *testing.T) {
	h := newHarness(t, script{
		transcription: `{"transcription":"Where are my keys?","is_relevant":true,"topic_category":"lost_object"}`,
		params:        `{"search_parameters":{"target_action":"left","target_objects":["keys"],"target_location":null,"time_context":"recent"}}`,
		reply:         "You left your car keys by the door yesterday at 9:15 AM.",
	}, keysCorpus(t))

	result, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, []Event{EventTranscription, EventResponse, EventDone}, h.emitter.names())
	assert.True(t, result.Success)
	assert.Equal(t, "Where are my keys?", result.UserQuery)
	assert.Equal(t, types.ResponseFound, result.Response.Type)
	assert.Equal(t, "You left your car keys by the door yesterday at 9:15 AM.", result.Response.Text)
	assert.Equal(t, []byte("RIFF"), result.Response.Audio)
	require.NotNil(t, result.MatchCount)
	assert.Equal(t, 1, *result.MatchCount)
	require.NotNil(t, result.SearchParams)
	assert.Equal(t, "left", result.SearchParams.Action())
	assert.Equal(t, "0.00s", result.Duration)
	assert.Equal(t, requestTime, result.Timestamp)
	assert.Equal(t, requestTime, result.Conversation.User.Timestamp)
	assert.Equal(t, types.ResponseFound, result.Conversation.Assistant.Type)

	transcribed := h.emitter.events[0].data.(types.TranscriptionEvent)
	assert.Equal(t, types.TopicLostObject, transcribed.TopicCategory)
	assert.True(t, transcribed.IsRelevant)
	assert.Equal(t, requestTime, transcribed.Timestamp)
	assert.Same(t, result, h.emitter.events[1].data)

	assert.Equal(t, []string{"files/1"}, h.fake.Deletes, "upload released exactly once")

	last := h.fake.Requests[len(h.fake.Requests)-1]
	assert.Contains(t, last.Prompt, "when: yesterday at 09:15 AM")
}

func TestOffTopicSkipsSearch(t *testing.T) {
	lister := &countingLister{}
	h := newHarness(t, script{
		transcription: `{"transcription":"What's the weather?","is_relevant":false,"topic_category":"off_topic"}`,
	}, lister)

	result, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, []Event{EventTranscription, EventResponse, EventDone}, h.emitter.names())
	assert.Equal(t, composer.OffTopicReply, result.Response.Text)
	assert.Equal(t, types.ResponseOffTopic, result.Response.Type)
	assert.Nil(t, result.SearchParams)
	assert.Nil(t, result.MatchCount)
	assert.Zero(t, lister.calls, "record store never queried")
	assert.Equal(t, 1, h.fake.RequestCount(), "only the transcription call reaches the backend")
	assert.Equal(t, 1, h.fake.DeleteCount())
}

func TestRelevantButOffTopicCategory(t *testing.T) {
	lister := &countingLister{}
	h := newHarness(t, script{
		transcription: `{"transcription":"Tell me a joke","is_relevant":true,"topic_category":"off_topic"}`,
	}, lister)

	result, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, types.ResponseOffTopic, result.Response.Type)
	assert.Zero(t, lister.calls)
}

func TestDegradedParamsNotFound(t *testing.T) {
	h := newHarness(t, script{
		transcription: `{"transcription":"Where are my keys?","is_relevant":true,"topic_category":"lost_object"}`,
		params:        "Sorry, I can't help with that.",
		reply:         "",
	}, keysCorpus(t))

	result, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, []Event{EventTranscription, EventResponse, EventDone}, h.emitter.names())
	require.NotNil(t, result.SearchParams)
	assert.Nil(t, result.SearchParams.TargetAction)
	assert.Empty(t, result.SearchParams.TargetObjects)
	assert.Equal(t, 0, *result.MatchCount)
	assert.Equal(t, types.ResponseNotFound, result.Response.Type)
	assert.Equal(t, composer.NotFoundFallback, result.Response.Text)
}

func TestTranscriptionFailureEmitsOnlyError(t *testing.T) {
	h := newHarness(t, script{}, &countingLister{})
	h.fake.States = []ai.FileState{ai.StateProcessing}

	_, err := h.run(t)
	require.ErrorIs(t, err, ai.ErrProcessingTimeout)

	assert.Equal(t, []Event{EventError}, h.emitter.names())
	ev := h.emitter.events[0].data.(types.ErrorEvent)
	assert.False(t, ev.Success)
	assert.Contains(t, ev.Error, "still processing")
	assert.Equal(t, 1, h.fake.DeleteCount(), "stage released its own upload")
}

func TestStoreFailureAfterTranscription(t *testing.T) {
	lister := &countingLister{err: errors.New("database is locked")}
	h := newHarness(t, script{
		transcription: `{"transcription":"Where is my phone?","is_relevant":true,"topic_category":"lost_object"}`,
		params:        `{"target_objects":["phone"]}`,
	}, lister)

	result, err := h.run(t)
	require.Error(t, err)
	assert.Nil(t, result)

	assert.Equal(t, []Event{EventTranscription, EventError}, h.emitter.names())
	assert.Contains(t, h.emitter.events[1].data.(types.ErrorEvent).Error, "database is locked")
	assert.Equal(t, []string{"files/1"}, h.fake.Deletes)
}

func TestComposeFailureReleasesOnce(t *testing.T) {
	h := newHarness(t, script{
		transcription: `{"transcription":"Where are my keys?","is_relevant":true,"topic_category":"lost_object"}`,
		params:        `{"target_objects":["keys"]}`,
		replyErr:      errors.New("service unavailable"),
	}, keysCorpus(t))

	_, err := h.run(t)
	require.Error(t, err)
	assert.Equal(t, []Event{EventTranscription, EventError}, h.emitter.names())
	assert.Equal(t, 1, h.fake.DeleteCount())
}

func TestSynthesisFailureStillCompletes(t *testing.T) {
	h := newHarness(t, script{
		transcription: `{"transcription":"Did I lock the door?","is_relevant":true,"topic_category":"past_action"}`,
		params:        `{"target_action":"lock"}`,
		reply:         "I couldn't find that one.",
	}, &countingLister{})
	h.fake.SpeakErr = errors.New("tts down")

	result, err := h.run(t)
	require.NoError(t, err)
	assert.Nil(t, result.Response.Audio)
	assert.Equal(t, []Event{EventTranscription, EventResponse, EventDone}, h.emitter.names())
}

func TestEmitterFailureDoesNotAbort(t *testing.T) {
	h := newHarness(t, script{
		transcription: `{"transcription":"hi","is_relevant":false,"topic_category":"off_topic"}`,
	}, &countingLister{})

	var seen []Event
	emitter := EmitterFunc(func(event Event, _ any) error {
		seen = append(seen, event)
		return errors.New("client went away")
	})

	_, err := h.orch.Run(context.Background(), Request{AudioPath: "/tmp/q.wav", MimeType: "audio/wav", DisplayName: "q.wav"}, emitter)
	require.NoError(t, err)
	assert.Equal(t, []Event{EventTranscription, EventResponse, EventDone}, seen)
}

type stageRecorder struct {
	stages   []string
	outcomes []string
}

func (s *stageRecorder) ObserveStage(stage string, _ time.Duration) {
	s.stages = append(s.stages, stage)
}
func (s *stageRecorder) RecordQuery(outcome string) { s.outcomes = append(s.outcomes, outcome) }
func (s *stageRecorder) RecordResponse(string)      {}

func TestStagesObservedWhenSynthesisFails(t *testing.T) {
	h := newHarness(t, script{
		transcription: `{"transcription":"Where are my keys?","is_relevant":true,"topic_category":"lost_object"}`,
		params:        `{"target_action":"left","target_objects":["keys"]}`,
		reply:         "By the door.",
	}, keysCorpus(t))
	rec := &stageRecorder{}
	h.orch.metrics = rec
	h.fake.SpeakErr = errors.New("tts down")

	_, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"transcribe", "extract", "match", "compose", "synthesize"}, rec.stages)
	assert.Equal(t, []string{string(StateCompleted)}, rec.outcomes)
}
