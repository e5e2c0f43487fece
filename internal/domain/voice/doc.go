// Package voice provides domain models for narration voice access and usage accounting.
//
// This package implements the voice-quota bounded context, which is responsible for:
//   - Tracking per-account, per-calendar-month usage of metered resources
//   - Gating access to the synthetic voice catalog by subscription tier
//   - Describing the outcome of speech synthesis across multiple vendors
//
// Key Aggregates:
//   - UsageRecord: One row per account holding the current period's counters
//     and the voice a free account locked on first use
//
// Value Objects:
//   - ResourceType: Enumeration of metered resources
//   - AccessDecision / VoiceAccessSummary: Results of tier checks
//   - ProviderResult: Outcome of one synthesis attempt after failover
//
// The voice domain integrates with:
//   - Accounts and subscriptions: consumed read-only as a premium signal
//   - Speech vendors: behind the SpeechProvider interface
package voice
