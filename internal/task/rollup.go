package task

import (
	"sort"
	"strings"
)

// Slug converts an item id into the fragment used in artifact file names.
// Every character outside [A-Za-z0-9_-] becomes an underscore, so "3.2" maps
// to "3_2".
func Slug(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Counts tallies statuses across a run. Statuses outside the task lifecycle
// (stalled, error, launch_failed) land in Other.
type Counts struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Blocked   int
	Other     int
}

// Add records one status.
func (c *Counts) Add(s Status) {
	c.Total++
	switch s {
	case StatusPending, "":
		c.Pending++
	case StatusRunning:
		c.Running++
	case StatusCompleted:
		c.Completed++
	case StatusFailed:
		c.Failed++
	case StatusBlocked:
		c.Blocked++
	default:
		c.Other++
	}
}

// Finished is the number of items with a terminal status.
func (c Counts) Finished() int { return c.Completed + c.Failed + c.Blocked }

// Percent is the completed share of the total, rounded down.
func (c Counts) Percent() int {
	if c.Total == 0 {
		return 0
	}
	return c.Completed * 100 / c.Total
}

// CountStatuses tallies statuses for items. Items without an entry count as pending.
func CountStatuses(items []WorkItem, statuses map[string]Status) Counts {
	var c Counts
	for _, it := range items {
		c.Add(statuses[it.ID])
	}
	return c
}

// CategoryRollup is the completed/total aggregate for one category.
type CategoryRollup struct {
	Category  string
	Completed int
	Failed    int
	Blocked   int
	Total     int
}

// SuccessRate is the completed share of the category's items in [0, 100].
func (r CategoryRollup) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Completed) * 100 / float64(r.Total)
}

// Rollup groups items by category in first-seen order. Items without a
// category are grouped under "Uncategorized".
func Rollup(items []WorkItem, statuses map[string]Status) []CategoryRollup {
	index := map[string]int{}
	var out []CategoryRollup
	for _, it := range items {
		cat := strings.TrimSpace(it.Category)
		if cat == "" {
			cat = "Uncategorized"
		}
		i, ok := index[cat]
		if !ok {
			i = len(out)
			index[cat] = i
			out = append(out, CategoryRollup{Category: cat})
		}
		out[i].Total++
		switch statuses[it.ID] {
		case StatusCompleted:
			out[i].Completed++
		case StatusFailed:
			out[i].Failed++
		case StatusBlocked:
			out[i].Blocked++
		}
	}
	return out
}

// Categories returns the distinct categories in sorted order.
func Categories(items []WorkItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if it.Category == "" || seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it.Category)
	}
	sort.Strings(out)
	return out
}
