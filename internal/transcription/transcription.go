// Package transcription uploads a voice query to the AI backend, waits for it
// to be ingested and asks for a verbatim transcription plus a topic check.
package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"trace-go/internal/ai"
	"trace-go/internal/extractor"
	"trace-go/internal/types"
)

const transcribePrompt = `Listen to this audio recording and:
1. Transcribe what the user said verbatim
2. Determine if the topic is RELEVANT to a memory assistant app (questions about past actions, lost objects, forgotten events, what happened, where things are, memory recall, etc.)

Return ONLY this JSON:
{
  "transcription": "exact words spoken by the user",
  "is_relevant": true or false,
  "topic_category": "memory_query | lost_object | past_action | event_recall | off_topic"
}`

type Backend interface {
	ai.Files
	ai.Generator
}

type Stage struct {
	backend Backend
	model   string
	poll    ai.PollConfig
	metrics extractor.DegradeRecorder
	log     *logrus.Entry
}

func New(backend Backend, model string, poll ai.PollConfig, metrics extractor.DegradeRecorder, log *logrus.Entry) *Stage {
	return &Stage{
		backend: backend,
		model:   model,
		poll:    poll,
		metrics: metrics,
		log:     log.WithField("component", "transcription"),
	}
}

// Transcribe runs upload, readiness polling and classification. On success the
// caller owns result.FileRef and must Release it; on failure the upload has
// already been released.
func (s *Stage) Transcribe(ctx context.Context, audioPath, mimeType, displayName string) (types.TranscriptionResult, error) {
	s.log.WithField("file", displayName).Info("uploading audio")
	uploaded, err := s.backend.Upload(ctx, audioPath, mimeType, displayName)
	if err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	log := s.log.WithField("remote_file", uploaded.Name)

	result, err := s.transcribeUploaded(ctx, uploaded.Name)
	if err != nil {
		s.Release(ctx, uploaded.Name)
		return types.TranscriptionResult{}, err
	}
	result.FileRef = uploaded.Name

	log.WithFields(logrus.Fields{
		"transcription": result.Transcription,
		"topic":         result.TopicCategory,
		"relevant":      result.IsRelevant,
	}).Info("transcribed")
	return result, nil
}

func (s *Stage) transcribeUploaded(ctx context.Context, name string) (types.TranscriptionResult, error) {
	active, err := ai.WaitForActive(ctx, s.backend, name, s.poll)
	if err != nil {
		return types.TranscriptionResult{}, err
	}

	raw, err := s.backend.Generate(ctx, ai.Request{
		Model:  s.model,
		Prompt: transcribePrompt,
		File:   active,
		Format: ai.FormatJSON,
	})
	if err != nil {
		return types.TranscriptionResult{}, fmt.Errorf("transcribe: %w", err)
	}

	result, ok := Parse(raw)
	if !ok {
		s.log.WithField("raw", raw).Warn("transcription output did not parse, treating it as off-topic text")
		if s.metrics != nil {
			s.metrics.RecordDegraded("transcribe")
		}
	}
	return result, nil
}

// Parse coerces backend output into a TranscriptionResult. When it does not
// parse, the whole raw text becomes the transcription, marked irrelevant.
func Parse(raw string) (types.TranscriptionResult, bool) {
	d := extractor.DecodeJSON[types.TranscriptionResult](raw)
	if !d.OK {
		return types.TranscriptionResult{
			Transcription: raw,
			IsRelevant:    false,
			TopicCategory: types.TopicUnknown,
		}, false
	}
	r := d.Value
	r.TopicCategory = types.TopicCategory(strings.TrimSpace(string(r.TopicCategory)))
	if r.TopicCategory == "" {
		r.TopicCategory = types.TopicUnknown
	}
	return r, true
}

// Release deletes the remote upload. Failures are logged, never returned.
func (s *Stage) Release(ctx context.Context, fileRef string) {
	if fileRef == "" {
		return
	}
	ctx, cancel := ai.ReleaseContext(ctx)
	defer cancel()
	if err := s.backend.Delete(ctx, fileRef); err != nil {
		s.log.WithError(err).WithField("remote_file", fileRef).Warn("unable to delete remote file")
	}
}
