package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

// OrchestratorConfig contains configuration for ProviderOrchestrator
type OrchestratorConfig struct {
	// ProviderOrder is the priority order. Empty means registration order.
	ProviderOrder []string
	// PreferredProvider is tried first. Empty means the first provider in ProviderOrder.
	PreferredProvider string
}

// Synthesizer turns text into audio with failover
type Synthesizer interface {
	Synthesize(ctx context.Context, req voice.SynthesisRequest) (*voice.ProviderResult, error)
}

// ProviderOrchestrator calls speech providers in priority order, skipping
// circuit-open providers and falling back on failure.
type ProviderOrchestrator struct {
	providers  map[string]voice.SpeechProvider
	candidates []string
	preferred  string
	breaker    *CircuitBreaker
	metrics    Metrics
	logger     *zap.Logger
}

// NewProviderOrchestrator creates a new ProviderOrchestrator
func NewProviderOrchestrator(
	providers []voice.SpeechProvider,
	breaker *CircuitBreaker,
	metrics Metrics,
	logger *zap.Logger,
	config OrchestratorConfig,
) (*ProviderOrchestrator, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one speech provider is required")
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	byName := make(map[string]voice.SpeechProvider, len(providers))
	registered := make([]string, 0, len(providers))
	for _, p := range providers {
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate speech provider %q", p.Name())
		}
		byName[p.Name()] = p
		registered = append(registered, p.Name())
	}

	order := config.ProviderOrder
	if len(order) == 0 {
		order = registered
	}
	for _, name := range order {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("provider order references unknown provider %q", name)
		}
	}

	preferred := config.PreferredProvider
	if preferred == "" {
		preferred = order[0]
	}
	if _, ok := byName[preferred]; !ok {
		return nil, fmt.Errorf("preferred provider %q is not registered", preferred)
	}

	// preferred first, then the rest in priority order
	candidates := make([]string, 0, len(order))
	candidates = append(candidates, preferred)
	for _, name := range order {
		if name != preferred {
			candidates = append(candidates, name)
		}
	}

	return &ProviderOrchestrator{
		providers:  byName,
		candidates: candidates,
		preferred:  preferred,
		breaker:    breaker,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Candidates returns the providers in the order they are tried
func (o *ProviderOrchestrator) Candidates() []string {
	out := make([]string, len(o.candidates))
	copy(out, o.candidates)
	return out
}

// Synthesize returns audio from the first healthy provider.
// It fails with ErrProviderExhausted when every candidate failed or was circuit-open.
func (o *ProviderOrchestrator) Synthesize(ctx context.Context, req voice.SynthesisRequest) (*voice.ProviderResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return &voice.ProviderResult{UsedProvider: voice.ProviderNone}, nil
	}

	var (
		attempted    []string
		traversed    []string
		firstAllowed string
		skipped      bool
		lastErr      error
	)

	for _, name := range o.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		traversed = append(traversed, name)

		permit, ok := o.breaker.Allow(name)
		if !ok {
			skipped = true
			o.logger.Debug("Skipping provider with open circuit", zap.String("provider", name))
			continue
		}
		if firstAllowed == "" {
			firstAllowed = name
		}
		attempted = append(attempted, name)

		start := time.Now()
		audio, err := o.providers[name].Synthesize(ctx, req)
		elapsed := time.Since(start)

		if err == nil && (audio == nil || len(audio.Data) == 0) {
			err = errors.New("provider returned empty audio")
		}
		if err != nil {
			if ctx.Err() != nil {
				o.breaker.Release(permit)
				return nil, ctx.Err()
			}
			o.breaker.Failure(permit)
			o.metrics.RecordSynthesisAttempt(ctx, name, false, elapsed)
			o.logger.Warn("Speech provider failed",
				zap.String("provider", name),
				zap.Bool("trial", permit.Trial()),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			lastErr = err
			continue
		}

		o.breaker.Success(permit)
		o.metrics.RecordSynthesisAttempt(ctx, name, true, elapsed)

		result := &voice.ProviderResult{
			Audio:        audio,
			UsedProvider: name,
			Attempted:    attempted,
		}
		if name != o.preferred {
			result.PreferredProvider = o.preferred
			o.metrics.RecordFallback(ctx, o.preferred, name)
		}
		if skipped || name != firstAllowed || o.anyUnhealthy(traversed) {
			result.ProviderStatus = voice.ProviderStatusDegraded
		}
		return result, nil
	}

	o.metrics.RecordProviderExhausted(ctx)
	o.logger.Error("All speech providers exhausted",
		zap.Strings("attempted", attempted),
		zap.Strings("candidates", o.candidates),
		zap.Error(lastErr))
	if lastErr == nil {
		return nil, voice.ErrProviderExhausted
	}
	return nil, errors.Join(voice.ErrProviderExhausted, lastErr)
}

func (o *ProviderOrchestrator) anyUnhealthy(names []string) bool {
	for _, name := range names {
		if o.breaker.State(name) != CircuitClosed {
			return true
		}
	}
	return false
}
