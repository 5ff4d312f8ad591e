// Package speech converts reply text to audio. Synthesis is best-effort: a
// failure yields no audio, never an error.
package speech

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"trace-go/internal/ai"
)

var (
	symbols     = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}•]`)
	listMarkers = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	newlines    = regexp.MustCompile(`\r?\n`)
)

// FailureRecorder counts synthesis attempts that produced no audio.
type FailureRecorder interface {
	RecordSynthesisFailure()
}

type Synthesizer struct {
	speaker ai.Speaker
	metrics FailureRecorder
	log     *logrus.Entry
}

func New(speaker ai.Speaker, metrics FailureRecorder, log *logrus.Entry) *Synthesizer {
	return &Synthesizer{speaker: speaker, metrics: metrics, log: log.WithField("component", "speech")}
}

// Clean removes emoji, bullets, list markers and line breaks.
func Clean(text string) string {
	text = listMarkers.ReplaceAllString(text, "")
	text = symbols.ReplaceAllString(text, "")
	text = newlines.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Synthesize returns encoded audio for text, or nil when there is nothing to
// say or the backend could not produce audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) []byte {
	clean := Clean(text)
	if clean == "" {
		return nil
	}

	audio, err := s.speaker.Speak(ctx, clean)
	if err != nil {
		s.log.WithError(err).Warn("speech synthesis failed")
		s.recordFailure()
		return nil
	}
	if len(audio) == 0 {
		s.log.Warn("speech backend returned no audio")
		s.recordFailure()
		return nil
	}

	s.log.WithField("bytes", len(audio)).Debug("audio generated")
	return audio
}

func (s *Synthesizer) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordSynthesisFailure()
	}
}
