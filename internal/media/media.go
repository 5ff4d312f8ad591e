// Package media validates uploaded audio and video files and manages their
// temporary copies on local disk.
package media

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrTooLarge    = errors.New("file too large")
)

const octetStream = "application/octet-stream"

// Kind describes one family of accepted uploads.
type Kind struct {
	Name       string
	Extensions map[string]string
	Allowed    []string
}

var Audio = Kind{
	Name: "audio",
	Extensions: map[string]string{
		".wav":  "audio/wav",
		".mp3":  "audio/mpeg",
		".aac":  "audio/aac",
		".ogg":  "audio/ogg",
		".flac": "audio/flac",
		".m4a":  "audio/mp4",
		".webm": "audio/webm",
		".weba": "audio/webm",
	},
	Allowed: []string{
		"audio/wav", "audio/mpeg", "audio/mp3", "audio/aac", "audio/ogg",
		"audio/flac", "audio/mp4", "audio/webm", octetStream,
	},
}

var Video = Kind{
	Name: "video",
	Extensions: map[string]string{
		".mp4":  "video/mp4",
		".mpeg": "video/mpeg",
		".mpg":  "video/mpeg",
		".mov":  "video/quicktime",
		".avi":  "video/x-msvideo",
		".flv":  "video/x-flv",
		".webm": "video/webm",
		".wmv":  "video/x-ms-wmv",
		".3gp":  "video/3gpp",
		".mkv":  "video/x-matroska",
	},
	Allowed: []string{
		"video/mp4", "video/mpeg", "video/mov", "video/avi", "video/x-flv",
		"video/mpg", "video/webm", "video/wmv", "video/3gpp", "video/quicktime",
		"video/x-msvideo", "video/x-ms-wmv", "video/x-matroska", octetStream,
	},
}

// Accepts reports whether a file is acceptable by its declared type or by
// its extension.
func (k Kind) Accepts(declared, filename string) bool {
	if slices.Contains(k.Allowed, normalize(declared)) {
		return true
	}
	_, ok := k.Extensions[ext(filename)]
	return ok
}

// Resolve returns the MIME type to send upstream. Generic binary uploads take
// the type implied by their extension when one is known.
func (k Kind) Resolve(declared, filename string) string {
	declared = normalize(declared)
	if declared == "" || declared == octetStream {
		if m, ok := k.Extensions[ext(filename)]; ok {
			return m
		}
	}
	if declared == "" {
		return octetStream
	}
	return declared
}

// Upload is a file received from a client and saved to local disk.
type Upload struct {
	Path         string
	OriginalName string
	MimeType     string
	Size         int64
}

// SizeLabel renders the size in kilobytes, e.g. "12.50 KB".
func (u Upload) SizeLabel() string {
	return fmt.Sprintf("%.2f KB", float64(u.Size)/1024)
}

// Remove deletes the local copy. A file that is already gone is not an error.
func (u Upload) Remove() error {
	if u.Path == "" {
		return nil
	}
	if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Save validates fh against kind and maxBytes and copies it into dir under a
// unique name that keeps the original extension.
func Save(dir string, fh *multipart.FileHeader, kind Kind, maxBytes int64) (Upload, error) {
	declared := fh.Header.Get("Content-Type")
	if !kind.Accepts(declared, fh.Filename) {
		return Upload{}, fmt.Errorf("%w: %s (%s)", ErrUnsupported, declared, ext(fh.Filename))
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return Upload{}, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	return SaveReader(dir, src, fh.Filename, kind.Resolve(declared, fh.Filename), maxBytes)
}

// SaveReader copies r into dir. It is used for uploads that did not arrive as
// multipart files, such as paths handed to the CLI.
func SaveReader(dir string, r io.Reader, originalName, mimeType string, maxBytes int64) (Upload, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Upload{}, fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext(originalName))
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return Upload{}, fmt.Errorf("create %s: %w", path, err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()

	u := Upload{Path: path, OriginalName: originalName, MimeType: mimeType, Size: n}
	switch {
	case copyErr != nil:
		_ = u.Remove()
		return Upload{}, fmt.Errorf("write %s: %w", path, copyErr)
	case closeErr != nil:
		_ = u.Remove()
		return Upload{}, fmt.Errorf("close %s: %w", path, closeErr)
	case maxBytes > 0 && n > maxBytes:
		_ = u.Remove()
		return Upload{}, ErrTooLarge
	}
	return u, nil
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func normalize(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
