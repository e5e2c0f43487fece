package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// memoryLedgerRepo serializes every account under one mutex, matching the
// per-account atomicity the SQL repository provides.
type memoryLedgerRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*voice.UsageRecord
	err     error
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{records: make(map[uuid.UUID]*voice.UsageRecord)}
}

func (r *memoryLedgerRepo) ensure(accountID uuid.UUID, periodKey string) *voice.UsageRecord {
	now := time.Now()
	rec, ok := r.records[accountID]
	if !ok {
		rec, _ = voice.NewUsageRecord(accountID, now)
		rec.PeriodKey = periodKey
		r.records[accountID] = rec
	}
	rec.RollOver(periodKey, now)
	return rec
}

func (r *memoryLedgerRepo) EnsurePeriod(_ context.Context, accountID uuid.UUID, periodKey string) (*voice.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.ensure(accountID, periodKey).Clone(), nil
}

func (r *memoryLedgerRepo) Increment(_ context.Context, accountID uuid.UUID, periodKey string, resource voice.ResourceType, limit int64) (*voice.UsageRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, false, r.err
	}
	rec := r.ensure(accountID, periodKey)
	if !rec.CanIncrement(resource, limit) {
		return rec.Clone(), false, nil
	}
	if err := rec.Increment(resource, time.Now()); err != nil {
		return nil, false, err
	}
	return rec.Clone(), true, nil
}

func (r *memoryLedgerRepo) LockVoice(_ context.Context, accountID uuid.UUID, periodKey, voiceID string) (*voice.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rec := r.ensure(accountID, periodKey)
	if !rec.HasLockedVoice() {
		_ = rec.LockVoice(voiceID, time.Now())
	}
	return rec.Clone(), nil
}

// seed stores a record as-is, bypassing rollover
func (r *memoryLedgerRepo) seed(rec *voice.UsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.AccountID] = rec.Clone()
}

type mockAccountReader struct {
	mock.Mock
}

func (m *mockAccountReader) FindByID(ctx context.Context, id uuid.UUID) (*voice.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voice.Account), args.Error(1)
}

// stubAccounts returns premium for the listed accounts and free for everyone else
type stubAccounts struct {
	premium map[uuid.UUID]bool
}

func (s *stubAccounts) FindByID(_ context.Context, id uuid.UUID) (*voice.Account, error) {
	if s.premium[id] {
		return &voice.Account{ID: id, Subscription: &voice.Subscription{Status: voice.SubscriptionActive}}, nil
	}
	return &voice.Account{ID: id}, nil
}

type memoryCatalog struct {
	entries []voice.VoiceCatalogEntry
	err     error
}

func (c *memoryCatalog) FindByKey(_ context.Context, key string) (*voice.VoiceCatalogEntry, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.entries {
		if c.entries[i].Key == key {
			return &c.entries[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *memoryCatalog) FindByID(_ context.Context, id uuid.UUID) (*voice.VoiceCatalogEntry, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.entries {
		if c.entries[i].ID == id {
			return &c.entries[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *memoryCatalog) FindDefaultFree(_ context.Context) (*voice.VoiceCatalogEntry, error) {
	for i := range c.entries {
		if c.entries[i].IsDefaultFreeVoice {
			return &c.entries[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *memoryCatalog) List(_ context.Context) ([]voice.VoiceCatalogEntry, error) {
	return c.entries, nil
}

var (
	luna  = voice.VoiceCatalogEntry{ID: uuid.MustParse("0b7e3c1e-1d2a-4b59-9d1e-5f3c2a7b8c01"), Key: "luna", CanonicalID: "vendor-luna", IsDefaultFreeVoice: true}
	bjorn = voice.VoiceCatalogEntry{ID: uuid.MustParse("6f1c9a2d-3e4b-4c5d-8e6f-7a8b9c0d1e02"), Key: "bjorn", CanonicalID: "vendor-bjorn"}
	clara = voice.VoiceCatalogEntry{ID: uuid.MustParse("9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c03"), Key: "clara", CanonicalID: "vendor-clara"}
)

func newTestCatalog() *memoryCatalog {
	return &memoryCatalog{entries: []voice.VoiceCatalogEntry{luna, bjorn, clara}}
}

type fakeProvider struct {
	name  string
	fail  atomic.Bool
	calls atomic.Int32
	delay time.Duration
}

func newFakeProvider(name string, fail bool) *fakeProvider {
	p := &fakeProvider{name: name}
	p.fail.Store(fail)
	return p
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Synthesize(ctx context.Context, req voice.SynthesisRequest) (*voice.Audio, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fail.Load() {
		return nil, fmt.Errorf("%s: upstream unavailable", p.name)
	}
	return &voice.Audio{Data: []byte(p.name + ":" + req.Text), ContentType: "audio/mpeg"}, nil
}

type recordingPublisher struct {
	events chan shared.DomainEvent
	err    error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan shared.DomainEvent, 64)}
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		p.events <- e
	}
	return p.err
}

type recordingMetrics struct {
	NoopMetrics
	mu          sync.Mutex
	fallbacks   int
	exhausted   int
	transitions []string
	usage       map[voice.ResourceType]decimal.Decimal
}

func (m *recordingMetrics) RecordFallback(context.Context, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func (m *recordingMetrics) RecordProviderExhausted(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted++
}

func (m *recordingMetrics) RecordBreakerTransition(_ context.Context, provider string, from, to CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, provider+":"+from.String()+"->"+to.String())
}

func (m *recordingMetrics) RecordUsage(_ context.Context, resource voice.ResourceType, _ int64, cost decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usage == nil {
		m.usage = make(map[voice.ResourceType]decimal.Decimal)
	}
	m.usage[resource] = m.usage[resource].Add(cost)
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// quotaFixture wires the quota stack over in-memory collaborators
type quotaFixture struct {
	repo     *memoryLedgerRepo
	clock    *testClock
	accounts *stubAccounts
	ledger   *UsageLedger
	resolver *VoiceIdentityResolver
	policy   *TierPolicy
	service  *VoiceQuotaService
}

func newQuotaFixture() *quotaFixture {
	logger := zap.NewNop()
	f := &quotaFixture{
		repo:     newMemoryLedgerRepo(),
		clock:    newTestClock(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)),
		accounts: &stubAccounts{premium: map[uuid.UUID]bool{}},
	}
	f.ledger = NewUsageLedger(f.repo, nil, logger, WithLedgerClock(f.clock.Now))
	f.resolver = NewVoiceIdentityResolver(newTestCatalog(), logger, ResolverConfig{DefaultFreeVoice: "luna"})
	f.policy = NewTierPolicy(f.accounts, f.ledger, f.resolver, logger, DefaultTierPolicyConfig()).WithClock(f.clock.Now)
	f.service = NewVoiceQuotaService(f.ledger, f.policy, f.resolver, nil, nil, logger)
	return f
}

var errStoreDown = errors.New("connection refused")
