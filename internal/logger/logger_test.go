package logger

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestWithRequestHonoursRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf)

	req := httptest.NewRequest("POST", "/api/query", nil)
	req.Header.Set(RequestIDHeader, "req-123")

	entry := log.WithRequest(req)
	assert.Equal(t, "req-123", entry.Data["req_id"])
	assert.Equal(t, "/api/query", entry.Data["path"])
	assert.Equal(t, "trace", entry.Data["service"])
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	id := RequestID(req)
	require.NotEmpty(t, id)
	assert.NotEqual(t, id, RequestID(req), "fresh ids are not reused")
}

func TestWithErrorNil(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{})
	assert.Same(t, log.Entry, log.WithError(nil))
	assert.Equal(t, "boom", log.WithError(assertErr("boom")).Data["error"])
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
