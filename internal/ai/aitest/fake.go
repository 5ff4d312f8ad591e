// Package aitest provides a scripted in-memory AI backend for tests.
package aitest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trace-go/internal/ai"
)

// Fake implements ai.Files, ai.Generator and ai.Speaker.
//
// States is consumed one entry per Get call; the last entry repeats. Generate
// delegates to GenerateFunc, or returns Responses in order when it is nil.
type Fake struct {
	mu sync.Mutex

	UploadErr error
	GetErr    error
	DeleteErr error
	States    []ai.FileState
	FileError string

	GenerateFunc func(req ai.Request) (string, error)
	Responses    []string

	Audio    []byte
	SpeakErr error

	Uploads []string
	Gets    int
	Deletes []string
	// DeleteCtxErrs holds ctx.Err() as seen by each Delete call.
	DeleteCtxErrs []error
	Requests      []ai.Request
	Spoken        []string
}

func (f *Fake) Upload(_ context.Context, path, mimeType, displayName string) (*ai.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	f.Uploads = append(f.Uploads, path)
	name := fmt.Sprintf("files/%d", len(f.Uploads))
	return &ai.File{Name: name, URI: "https://backend.test/" + name, MIMEType: mimeType, State: ai.StateProcessing}, nil
}

func (f *Fake) Get(_ context.Context, name string) (*ai.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	state := ai.StateActive
	if len(f.States) > 0 {
		i := f.Gets
		if i >= len(f.States) {
			i = len(f.States) - 1
		}
		state = f.States[i]
	}
	f.Gets++
	return &ai.File{Name: name, URI: "https://backend.test/" + name, MIMEType: "audio/wav", State: state, Error: f.FileError}, nil
}

func (f *Fake) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes = append(f.Deletes, name)
	f.DeleteCtxErrs = append(f.DeleteCtxErrs, ctx.Err())
	return f.DeleteErr
}

func (f *Fake) Generate(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	fn := f.GenerateFunc
	var next string
	if fn == nil && len(f.Responses) > 0 {
		next = f.Responses[0]
		f.Responses = f.Responses[1:]
	}
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return next, nil
}

func (f *Fake) Speak(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Spoken = append(f.Spoken, text)
	if f.SpeakErr != nil {
		return nil, f.SpeakErr
	}
	return f.Audio, nil
}

// DeleteCount returns how many Delete calls were made.
func (f *Fake) DeleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Deletes)
}

// RequestCount returns how many Generate calls were made.
func (f *Fake) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// NoSleep is an ai.PollConfig sleep that returns immediately.
func NoSleep(context.Context, time.Duration) error { return nil }
