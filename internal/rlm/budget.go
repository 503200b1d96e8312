package rlm

import (
	"time"
)

// BudgetTracker tracks resource usage against a configured BudgetConfig
// across one recursive exploration run.
type BudgetTracker struct {
	config      BudgetConfig
	startedAt   time.Time
	tokensUsed  uint64
	toolCalls   uint32
	currentDepth uint32
}

func NewBudgetTracker(config BudgetConfig) *BudgetTracker {
	return &BudgetTracker{config: config, startedAt: time.Now()}
}

// CheckBudget returns a *BudgetExceededError for the first limit that has
// been reached, or nil if every budget still has headroom.
func (t *BudgetTracker) CheckBudget() error {
	if t.config.MaxTokens != nil && t.tokensUsed >= *t.config.MaxTokens {
		return NewBudgetExceededError(BudgetTokens, *t.config.MaxTokens, t.tokensUsed)
	}

	if t.config.MaxDurationSec != nil {
		elapsed := uint64(time.Since(t.startedAt).Seconds())
		if elapsed >= *t.config.MaxDurationSec {
			return NewBudgetExceededError(BudgetDuration, *t.config.MaxDurationSec, elapsed)
		}
	}

	if t.config.MaxDepth != nil && t.currentDepth >= *t.config.MaxDepth {
		return NewBudgetExceededError(BudgetDepth, uint64(*t.config.MaxDepth), uint64(t.currentDepth))
	}

	if t.config.MaxToolCalls != nil && t.toolCalls >= *t.config.MaxToolCalls {
		return NewBudgetExceededError(BudgetToolCalls, uint64(*t.config.MaxToolCalls), uint64(t.toolCalls))
	}

	return nil
}

func (t *BudgetTracker) RecordTokens(tokens uint64) { t.tokensUsed += tokens }
func (t *BudgetTracker) RecordToolCalls(count uint32) { t.toolCalls += count }
func (t *BudgetTracker) IncrementDepth()              { t.currentDepth++ }

func (t *BudgetTracker) Depth() uint32      { return t.currentDepth }
func (t *BudgetTracker) TokensUsed() uint64 { return t.tokensUsed }
func (t *BudgetTracker) ToolCalls() uint32  { return t.toolCalls }
func (t *BudgetTracker) Elapsed() time.Duration { return time.Since(t.startedAt) }
func (t *BudgetTracker) Config() BudgetConfig   { return t.config }

// IsLastTurn reports whether the next turn would be the last one allowed
// by the configured max depth.
func (t *BudgetTracker) IsLastTurn() bool {
	if t.config.MaxDepth == nil {
		return false
	}
	return t.currentDepth == saturatingSub(*t.config.MaxDepth, 1)
}

// WouldExceedDepth reports whether running another turn would hit or pass
// the configured max depth.
func (t *BudgetTracker) WouldExceedDepth() bool {
	if t.config.MaxDepth == nil {
		return false
	}
	return t.currentDepth >= saturatingSub(*t.config.MaxDepth, 1)
}

func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// BudgetSummary is a point-in-time snapshot of budget usage for reporting
// and for building ExplorationMetadata.
type BudgetSummary struct {
	TokensUsed         uint64
	TokenLimit         *uint64
	ToolCalls          uint32
	ToolCallLimit      *uint32
	DepthReached       uint32
	DepthLimit         *uint32
	DurationMs         uint64
	DurationLimitSec   *uint64
}

func (t *BudgetTracker) Summary() BudgetSummary {
	return BudgetSummary{
		TokensUsed:       t.tokensUsed,
		TokenLimit:       t.config.MaxTokens,
		ToolCalls:        t.toolCalls,
		ToolCallLimit:    t.config.MaxToolCalls,
		DepthReached:     t.currentDepth,
		DepthLimit:       t.config.MaxDepth,
		DurationMs:       uint64(time.Since(t.startedAt).Milliseconds()),
		DurationLimitSec: t.config.MaxDurationSec,
	}
}
