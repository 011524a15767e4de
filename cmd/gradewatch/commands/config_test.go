package commands

import (
	"testing"
	"time"

	"gradewatch-backend/services/watcher"

	"github.com/stretchr/testify/require"
)

func TestWatcherConfigSettings(t *testing.T) {
	cfg := WatcherConfig{
		MaxConcurrency:    8,
		DaysOutFilter:     ">=3",
		CycleDelaySeconds: 10,
		AuthWaitSeconds:   30,
		AuthDefault:       "shutdown",
	}

	s := cfg.settings(watcher.ModeMissing)
	require.Equal(t, watcher.ModeMissing, s.Mode)
	require.Equal(t, 8, s.MaxConcurrency)
	require.Equal(t, ">=3", s.DaysOutFilter)
	require.Equal(t, time.Second*10, s.CycleDelay)
	require.Equal(t, time.Second*30, s.AuthDecisionTimeout)
	require.Equal(t, watcher.DecisionShutdown, s.AuthDefaultDecision)

	// the mode always comes from the subcommand, never the file
	s = cfg.settings(watcher.ModeSubmission)
	require.Equal(t, watcher.ModeSubmission, s.Mode)

	// zero-valued knobs pick up engine defaults
	s = WatcherConfig{}.settings(watcher.ModeSubmission)
	require.Equal(t, watcher.DefaultMaxConcurrency, s.MaxConcurrency)
	require.Equal(t, watcher.DefaultBatchSize, s.BatchSize)
	require.Equal(t, watcher.DefaultCycleDelay, s.CycleDelay)
	require.Equal(t, watcher.DecisionContinue, s.AuthDefaultDecision)
}
