// Package speech contains the vendor clients behind the provider orchestrator.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	synthesizePath = "/v1/synthesize"
	maxErrorBody   = 512
)

// Static errors
var (
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrEmptyAudio    = errors.New("provider returned empty audio")
	ErrAudioTooLarge = errors.New("provider audio exceeds the size limit")
)

// StatusError is returned when a vendor answers with a non-2xx status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voice_id"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format"`
}

// HTTPProvider calls a vendor speech endpoint over HTTP. Rate-limit and
// server errors are retried with exponential backoff up to MaxRetries extra
// attempts; any other failure is returned immediately so the orchestrator
// can fail over.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	format     string
	maxRetries int
	maxBytes   int64
	client     *http.Client
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// Option customizes an HTTPProvider
type Option func(*HTTPProvider)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(p *HTTPProvider) { p.client = c }
}

// WithBackOff sets the retry interval bounds
func WithBackOff(initial, maxInterval time.Duration) Option {
	return func(p *HTTPProvider) {
		p.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxInterval
			return b
		}
	}
}

// NewHTTPProvider creates a provider from its configuration
func NewHTTPProvider(cfg config.ProviderConfig, logger *zap.Logger, opts ...Option) *HTTPProvider {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = config.DefaultMaxAudioBytes
	}
	p := &HTTPProvider{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		format:     cfg.Format,
		maxRetries: cfg.MaxRetries,
		maxBytes:   cfg.MaxAudioBytes,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("provider", cfg.Name)),
	}
	WithBackOff(200*time.Millisecond, 2*time.Second)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements voice.SpeechProvider
func (p *HTTPProvider) Name() string {
	return p.name
}

// Synthesize implements voice.SpeechProvider
func (p *HTTPProvider) Synthesize(ctx context.Context, req voice.SynthesisRequest) (*voice.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:     req.Text,
		VoiceID:  req.VoiceID,
		Language: req.Language,
		Format:   p.format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	attempt := 0
	audio, err := backoff.Retry(ctx, func() (*voice.Audio, error) {
		attempt++
		audio, err := p.do(ctx, body)
		if err == nil {
			return audio, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		if errors.Is(err, ErrEmptyAudio) || errors.Is(err, ErrAudioTooLarge) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(uint(p.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("Synthesis attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s synthesis failed: %w", p.name, err)
	}
	return audio, nil
}

func (p *HTTPProvider) do(ctx context.Context, body []byte) (*voice.Audio, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+synthesizePath, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/*")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Provider:   p.name,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if resp.ContentLength > p.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, resp.ContentLength)
	}
	// One byte past the limit tells an oversized body from one that fits exactly
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrAudioTooLarge, p.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "audio/") {
		contentType = contentTypeFor(p.format)
	}
	return &voice.Audio{Data: data, ContentType: contentType}, nil
}

func contentTypeFor(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}

var _ voice.SpeechProvider = (*HTTPProvider)(nil)
