package rlm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBudgetTracker(t *testing.T) {
	tracker := NewBudgetTracker(DefaultBudgetConfig())
	require.Equal(t, uint64(0), tracker.TokensUsed())
	require.Equal(t, uint32(0), tracker.ToolCalls())
	require.Equal(t, uint32(0), tracker.Depth())
}

func TestBudgetTracker_RecordTokens(t *testing.T) {
	tracker := NewBudgetTracker(DefaultBudgetConfig())
	tracker.RecordTokens(100)
	tracker.RecordTokens(50)
	require.Equal(t, uint64(150), tracker.TokensUsed())
}

func TestBudgetTracker_CheckBudget_TokensExceeded(t *testing.T) {
	limit := uint64(100)
	tracker := NewBudgetTracker(BudgetConfig{MaxTokens: &limit})
	tracker.RecordTokens(150)

	err := tracker.CheckBudget()
	require.Error(t, err)
	var exceeded *BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, BudgetTokens, exceeded.Type)
}

func TestBudgetTracker_IsLastTurn(t *testing.T) {
	depth := uint32(5)
	tracker := NewBudgetTracker(BudgetConfig{MaxDepth: &depth})
	for i := 0; i < 4; i++ {
		tracker.IncrementDepth()
	}
	require.True(t, tracker.IsLastTurn())
}

func TestBudgetTracker_Summary(t *testing.T) {
	tokens := uint64(10000)
	depth := uint32(10)
	tracker := NewBudgetTracker(BudgetConfig{MaxTokens: &tokens, MaxDepth: &depth})
	tracker.RecordTokens(500)
	tracker.RecordToolCalls(3)

	summary := tracker.Summary()
	require.Equal(t, uint64(500), summary.TokensUsed)
	require.Equal(t, uint32(3), summary.ToolCalls)
}
