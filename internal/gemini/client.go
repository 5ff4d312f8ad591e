// Package gemini adapts the Google Gen AI SDK to the ai backend interfaces.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"trace-go/internal/ai"
)

type Config struct {
	APIKey      string
	TTSModel    string
	Voice       string
	RetryWindow time.Duration
}

// Client implements ai.Files, ai.Generator and ai.Speaker. Transient backend
// errors are retried here with exponential backoff; callers never retry.
type Client struct {
	genai       *genai.Client
	ttsModel    string
	voice       string
	retryWindow time.Duration
	log         *logrus.Entry
}

func New(ctx context.Context, cfg Config, log *logrus.Entry) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = 20 * time.Second
	}
	return &Client{
		genai:       gc,
		ttsModel:    cfg.TTSModel,
		voice:       cfg.Voice,
		retryWindow: cfg.RetryWindow,
		log:         log.WithField("component", "gemini"),
	}, nil
}

func (c *Client) Upload(ctx context.Context, path, mimeType, displayName string) (*ai.File, error) {
	f, err := c.genai.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: upload %s: %w", displayName, err)
	}
	c.log.WithField("file", f.Name).Info("upload ok")
	return toFile(f), nil
}

func (c *Client) Get(ctx context.Context, name string) (*ai.File, error) {
	var out *ai.File
	err := c.retry(ctx, func() error {
		f, err := c.genai.Files.Get(ctx, name, nil)
		if err != nil {
			return permanentIfClientError(err)
		}
		out = toFile(f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: get %s: %w", name, err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	if _, err := c.genai.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("gemini: delete %s: %w", name, err)
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, req ai.Request) (string, error) {
	var parts []*genai.Part
	if req.File != nil {
		parts = append(parts, genai.NewPartFromURI(req.File.URI, req.File.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: string(req.Format)}

	var text string
	start := time.Now()
	err := c.retry(ctx, func() error {
		resp, err := c.genai.Models.GenerateContent(ctx, req.Model, contents, cfg)
		if err != nil {
			c.log.WithError(err).WithField("model", req.Model).Warn("generate content failed")
			return permanentIfClientError(err)
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"model":       req.Model,
		"format":      req.Format,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("generate content ok")
	return text, nil
}

// Speak returns the first candidate's inline audio, or nil when the response
// carries none.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
			},
		},
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.ttsModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: tts: %w", err)
	}
	return inlineAudio(resp), nil
}

func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0].InlineData == nil {
		return nil
	}
	return content.Parts[0].InlineData.Data
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.retryWindow
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// permanentIfClientError stops retries for 4xx responses other than 429.
func permanentIfClientError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

func toFile(f *genai.File) *ai.File {
	out := &ai.File{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    ai.FileState(f.State),
	}
	if f.Error != nil {
		out.Error = f.Error.Message
	}
	return out
}
