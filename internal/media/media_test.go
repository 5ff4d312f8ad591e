package media

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioAccepts(t *testing.T) {
	assert.True(t, Audio.Accepts("audio/wav", "q.wav"))
	assert.True(t, Audio.Accepts("audio/mp3", "q"))
	assert.True(t, Audio.Accepts("text/plain", "q.M4A"), "extension wins")
	assert.True(t, Audio.Accepts("application/octet-stream", "q.bin"))
	assert.False(t, Audio.Accepts("image/png", "q.png"))
	assert.False(t, Audio.Accepts("video/mp4", "clip.mp4"))
}

func TestVideoAccepts(t *testing.T) {
	assert.True(t, Video.Accepts("video/quicktime", "clip.mov"))
	assert.True(t, Video.Accepts("", "clip.mkv"))
	assert.False(t, Video.Accepts("audio/wav", "q.wav"))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "audio/mp4", Audio.Resolve("application/octet-stream", "memo.m4a"))
	assert.Equal(t, "audio/webm", Audio.Resolve("", "memo.weba"))
	assert.Equal(t, "application/octet-stream", Audio.Resolve("application/octet-stream", "memo.xyz"))
	assert.Equal(t, "audio/wav", Audio.Resolve("audio/wav; codecs=1", "memo.mp3"), "declared type is kept")
	assert.Equal(t, "video/x-matroska", Video.Resolve("application/octet-stream", "CLIP.MKV"))
}

func fileHeader(t *testing.T, name, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["audio"][0]
}

func TestSaveAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	fh := fileHeader(t, "memo.m4a", "application/octet-stream", []byte("audio-bytes"))

	u, err := Save(dir, fh, Audio, 1024)
	require.NoError(t, err)
	assert.Equal(t, "memo.m4a", u.OriginalName)
	assert.Equal(t, "audio/mp4", u.MimeType)
	assert.Equal(t, int64(11), u.Size)
	assert.True(t, strings.HasSuffix(u.Path, ".m4a"))
	assert.Equal(t, "0.01 KB", u.SizeLabel())

	data, err := os.ReadFile(u.Path)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))

	require.NoError(t, u.Remove())
	_, err = os.Stat(u.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, u.Remove(), "second remove is a no-op")
}

func TestSaveRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := Save(dir, fileHeader(t, "notes.txt", "text/plain", []byte("hi")), Audio, 1024)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Save(dir, fileHeader(t, "big.wav", "audio/wav", bytes.Repeat([]byte{1}, 64)), Audio, 32)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing left behind")
}

func TestSaveReaderEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	_, err := SaveReader(dir, strings.NewReader("0123456789"), "clip.mp4", "video/mp4", 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
