// Package observability tracks per-item statistics of a generation run.
package observability

import (
	"sort"
	"sync"
	"time"
)

// RunStats tracks how long each item took to generate and which columns
// were left without a description.
type RunStats struct {
	mu          sync.RWMutex
	items       map[string]*ItemStats
	undescribed map[string]*ColumnStats
}

// ItemStats holds statistics for one generated item.
type ItemStats struct {
	ID          string
	Duration    time.Duration
	Columns     int
	Undescribed int
}

// ColumnStats counts the items in which a column appeared without a description.
type ColumnStats struct {
	Column    string
	Frequency int64
	Items     []string
}

// NewRunStats creates an empty tracker.
func NewRunStats() *RunStats {
	return &RunStats{
		items:       make(map[string]*ItemStats),
		undescribed: make(map[string]*ColumnStats),
	}
}

// RecordItem records a generated item. Recording the same id again
// replaces the earlier entry; undescribed column counts accumulate.
// This method is thread-safe.
func (r *RunStats) RecordItem(id string, duration time.Duration, columns int, undescribed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[id] = &ItemStats{
		ID:          id,
		Duration:    duration,
		Columns:     columns,
		Undescribed: len(undescribed),
	}

	for _, col := range undescribed {
		stats, exists := r.undescribed[col]
		if !exists {
			stats = &ColumnStats{Column: col}
			r.undescribed[col] = stats
		}
		stats.Frequency++
		stats.Items = append(stats.Items, id)
	}
}

// Items returns the number of recorded items.
func (r *RunStats) Items() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Total returns the summed generation time of every item.
func (r *RunStats) Total() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total time.Duration
	for _, s := range r.items {
		total += s.Duration
	}
	return total
}

// Slowest returns the n slowest items, slowest first. Ties are ordered by id.
func (r *RunStats) Slowest(n int) []ItemStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.items) == 0 {
		return []ItemStats{}
	}

	stats := make([]ItemStats, 0, len(r.items))
	for _, s := range r.items {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Duration != stats[j].Duration {
			return stats[i].Duration > stats[j].Duration
		}
		return stats[i].ID < stats[j].ID
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// TopUndescribed returns the n columns most often left undescribed, most
// frequent first. Ties are ordered by column name. The returned stats are
// copies.
func (r *RunStats) TopUndescribed(n int) []ColumnStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.undescribed) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(r.undescribed))
	for _, s := range r.undescribed {
		stats = append(stats, ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			Items:     append([]string(nil), s.Items...),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}
