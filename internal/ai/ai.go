// Package ai describes the generative backend the pipeline talks to: an
// asynchronous file-ingestion API, format-constrained content generation and
// text-to-speech. Concrete clients live in their own packages.
package ai

import (
	"context"
	"errors"
)

var (
	ErrUpload            = errors.New("upload failed")
	ErrProcessingTimeout = errors.New("file processing timed out")
	ErrProcessingFailed  = errors.New("file processing failed")
)

type FileState string

const (
	StateProcessing FileState = "PROCESSING"
	StateActive     FileState = "ACTIVE"
	StateFailed     FileState = "FAILED"
)

// File is a remote upload as seen by the backend.
type File struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
	Error    string
}

// Format constrains the shape of a generation response.
type Format string

const (
	FormatJSON Format = "application/json"
	FormatText Format = "text/plain"
)

// Request is a single generation call. File is optional.
type Request struct {
	Model  string
	Prompt string
	File   *File
	Format Format
}

type Files interface {
	Upload(ctx context.Context, path, mimeType, displayName string) (*File, error)
	Get(ctx context.Context, name string) (*File, error)
	Delete(ctx context.Context, name string) error
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Speaker converts text to encoded audio. A nil slice with a nil error means
// the backend returned no audio payload.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}
