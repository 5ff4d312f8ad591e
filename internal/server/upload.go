package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"trace-go/internal/media"
)

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

// receive saves the single file in field to the upload dir. On failure it
// has already written a 400 response.
func (s *Server) receive(w http.ResponseWriter, r *http.Request, field string, kind media.Kind, limit int64) (media.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusBadRequest, "File too large")
			return media.Upload{}, false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("No %s file provided. Use field '%s'.", kind.Name, field))
		return media.Upload{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("No %s file provided. Use field '%s'.", kind.Name, field))
		return media.Upload{}, false
	}

	u, err := media.Save(s.opts.UploadDir, files[0], kind, limit)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "File too large")
		return media.Upload{}, false
	case errors.Is(err, media.ErrUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
		return media.Upload{}, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return media.Upload{}, false
	}
	return u, true
}

// discard removes the local copy of an upload, logging failures.
func (s *Server) discard(log *logrus.Entry, u media.Upload) {
	if err := u.Remove(); err != nil {
		log.WithError(err).WithField("path", u.Path).Warn("unable to delete local upload")
		if s.opts.Cleanup != nil {
			s.opts.Cleanup.RecordCleanupFailure()
		}
	}
}
