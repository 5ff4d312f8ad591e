package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trace-go/internal/ai/aitest"
)

type failureCounter struct{ n int }

func (f *failureCounter) RecordSynthesisFailure() { f.n++ }

func newSynth(fake *aitest.Fake, counter *failureCounter) (*Synthesizer, *logtest.Hook) {
	l, hook := logtest.NewNullLogger()
	return New(fake, counter, logrus.NewEntry(l)), hook
}

func TestClean(t *testing.T) {
	cases := map[string]string{
		"Found them! 🔑✨":            "Found them!",
		"Line one\nLine two":        "Line one Line two",
		"- keys\n* wallet\n• phone": "keys wallet phone",
		"Sunny ☀ day ✔":             "Sunny  day",
		"  well-known place  ":      "well-known place",
		"🎉🎉":                        "",
		"Took 2 * 3 minutes":        "Took 2 * 3 minutes",
	}
	for in, want := range cases {
		assert.Equal(t, want, Clean(in), "input %q", in)
	}
}

func TestSynthesizeSendsCleanText(t *testing.T) {
	fake := &aitest.Fake{Audio: []byte("RIFF")}
	counter := &failureCounter{}
	s, _ := newSynth(fake, counter)

	audio := s.Synthesize(context.Background(), "Your keys 🔑\nare on the counter.")
	assert.Equal(t, []byte("RIFF"), audio)
	assert.Equal(t, []string{"Your keys  are on the counter."}, fake.Spoken)
	assert.Zero(t, counter.n)
}

func TestSynthesizeEmptyTextSkipsBackend(t *testing.T) {
	fake := &aitest.Fake{Audio: []byte("RIFF")}
	s, _ := newSynth(fake, &failureCounter{})

	assert.Nil(t, s.Synthesize(context.Background(), " 🎉 \n"))
	assert.Empty(t, fake.Spoken)
}

func TestSynthesizeFailureYieldsNil(t *testing.T) {
	fake := &aitest.Fake{SpeakErr: errors.New("tts model overloaded")}
	counter := &failureCounter{}
	s, hook := newSynth(fake, counter)

	assert.Nil(t, s.Synthesize(context.Background(), "hello"))
	assert.Equal(t, 1, counter.n)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSynthesizeNoAudio(t *testing.T) {
	fake := &aitest.Fake{}
	counter := &failureCounter{}
	s, _ := newSynth(fake, counter)

	assert.Nil(t, s.Synthesize(context.Background(), "hello"))
	assert.Equal(t, 1, counter.n)
}

func TestSynthesizeNilMetrics(t *testing.T) {
	l, _ := logtest.NewNullLogger()
	s := New(&aitest.Fake{SpeakErr: errors.New("x")}, nil, logrus.NewEntry(l))
	assert.Nil(t, s.Synthesize(context.Background(), "hello"))
}
