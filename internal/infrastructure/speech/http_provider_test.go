package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, url string, maxRetries int) *HTTPProvider {
	t.Helper()
	cfg := config.ProviderConfig{
		Name:       "elevenlabs",
		BaseURL:    url + "/",
		APIKey:     "secret-key",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
		Format:     "mp3",
	}
	return NewHTTPProvider(cfg, zap.NewNop(), WithBackOff(time.Millisecond, 5*time.Millisecond))
}

func TestHTTPProvider_Synthesize(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, synthesizePath, r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 1)
	audio, err := p.Synthesize(context.Background(), voice.SynthesisRequest{
		Text:     "Once upon a time",
		VoiceID:  "EXAVITQu4vr4xnSDxMaL",
		Language: "en",
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio.Data)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, "EXAVITQu4vr4xnSDxMaL", got.VoiceID)
	assert.Equal(t, "mp3", got.Format)
	assert.Equal(t, "elevenlabs", p.Name())
}

func TestHTTPProvider_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	audio, err := newTestProvider(t, srv.URL, 2).Synthesize(context.Background(), voice.SynthesisRequest{Text: "hello", VoiceID: "v"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "audio/mpeg", audio.ContentType)
}

func TestHTTPProvider_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		maxRetries int
		wantCalls  int32
	}{
		{"client error is not retried", http.StatusBadRequest, 3, 1},
		{"unauthorized is not retried", http.StatusUnauthorized, 3, 1},
		{"server error exhausts retries", http.StatusBadGateway, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := newTestProvider(t, srv.URL, tt.maxRetries).Synthesize(context.Background(), voice.SynthesisRequest{Text: "hello", VoiceID: "v"})

			require.Error(t, err)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestHTTPProvider_EmptyInputAndOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	p := newTestProvider(t, srv.URL, 2)

	_, err := p.Synthesize(context.Background(), voice.SynthesisRequest{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = p.Synthesize(context.Background(), voice.SynthesisRequest{Text: "hello", VoiceID: "v"})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestHTTPProvider_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProvider(t, srv.URL, 5).Synthesize(ctx, voice.SynthesisRequest{Text: "hello", VoiceID: "v"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProviders(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{Name: "elevenlabs", BaseURL: "http://eleven.local"},
		{Name: "openai"},
		{Name: "google", BaseURL: "http://google.local"},
	}

	providers, err := NewProviders(cfgs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"elevenlabs", "google"}, Names(providers))

	_, err = NewProviders([]config.ProviderConfig{{Name: "openai"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestHTTPProvider_AudioSizeLimit(t *testing.T) {
	var calls atomic.Int32
	payload := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Flushing first forces chunked encoding so the client sees no Content-Length
		w.(http.Flusher).Flush()
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	newProvider := func(limit int64) *HTTPProvider {
		return NewHTTPProvider(config.ProviderConfig{
			Name:          "openai",
			BaseURL:       srv.URL,
			Timeout:       2 * time.Second,
			MaxRetries:    2,
			Format:        "mp3",
			MaxAudioBytes: limit,
		}, zap.NewNop(), WithBackOff(time.Millisecond, 5*time.Millisecond))
	}

	t.Run("body at the limit is accepted", func(t *testing.T) {
		audio, err := newProvider(int64(len(payload))).Synthesize(context.Background(), voice.SynthesisRequest{Text: "hello", VoiceID: "v"})
		require.NoError(t, err)
		assert.Equal(t, payload, audio.Data)
	})

	t.Run("oversized body is rejected without retry", func(t *testing.T) {
		calls.Store(0)
		_, err := newProvider(int64(len(payload))-1).Synthesize(context.Background(), voice.SynthesisRequest{Text: "hello", VoiceID: "v"})
		assert.ErrorIs(t, err, ErrAudioTooLarge)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestHTTPProvider_RejectsDeclaredOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.ProviderConfig{
		Name:          "google",
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		Format:        "wav",
		MaxAudioBytes: 1024,
	}, zap.NewNop())

	_, err := p.Synthesize(context.Background(), voice.SynthesisRequest{Text: "hello", VoiceID: "v"})
	assert.ErrorIs(t, err, ErrAudioTooLarge)
}
