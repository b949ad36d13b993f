package corrections

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// StatsAccumulator batches rule usage counters in memory so normalization
// never does per-call read-modify-write against shared rows. Flushed once
// per session; a failed flush is logged and dropped, never fatal.
type StatsAccumulator struct {
	mu     sync.Mutex
	counts map[int64]RuleStat
}

// NewStatsAccumulator creates an empty accumulator.
func NewStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{counts: make(map[int64]RuleStat)}
}

// Record counts one successful application of a rule.
func (s *StatsAccumulator) Record(ruleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat := s.counts[ruleID]
	stat.Usage++
	stat.Success++
	s.counts[ruleID] = stat
}

// Snapshot returns a copy of the pending counters.
func (s *StatsAccumulator) Snapshot() map[int64]RuleStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]RuleStat, len(s.counts))
	for id, stat := range s.counts {
		out[id] = stat
	}
	return out
}

// Flush writes pending counters to the store and clears them. Errors are
// logged, not returned: statistics must never fail a correction run.
func (s *StatsAccumulator) Flush(ctx context.Context, dst RuleSource) {
	s.mu.Lock()
	pending := s.counts
	s.counts = make(map[int64]RuleStat)
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	if err := dst.BumpRuleStats(ctx, pending); err != nil {
		zap.L().Warn("corrections: rule stats flush failed",
			zap.Int("rules", len(pending)),
			zap.Error(err),
		)
	}
}
