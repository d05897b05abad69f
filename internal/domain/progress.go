// Package domain implements the dataset curation pipeline: the worker
// pools that drive extraction and decompilation, checkpointed result
// collection, correlation of the two artifact kinds, and the repository
// lifecycle around them.
package domain

import "sync/atomic"

// TotalUnknown marks a batch whose size is not known upfront, e.g. when
// work items are discovered lazily while the batch is already running.
const TotalUnknown int64 = -1

// Progress tracks one batch of work. Completion callbacks from many
// workers advance it concurrently; displays read it at any time without
// blocking the workers.
type Progress struct {
	label     string
	total     int64
	completed atomic.Int64
	errors    atomic.Int64
}

// NewProgress creates a tracker for a batch of total items. Pass
// TotalUnknown when the batch size is not known upfront.
func NewProgress(label string, total int64) *Progress {
	if total < 0 {
		total = TotalUnknown
	}

	return &Progress{label: label, total: total}
}

// Advance adds n to the error counter when isError is set, otherwise to
// the completed counter.
func (p *Progress) Advance(n int64, isError bool) {
	if isError {
		p.errors.Add(n)

		return
	}
	p.completed.Add(n)
}

// Label returns the batch description.
func (p *Progress) Label() string {
	return p.label
}

// Completed returns the number of successfully finished items.
func (p *Progress) Completed() int64 {
	return p.completed.Load()
}

// Errors returns the number of failed items.
func (p *Progress) Errors() int64 {
	return p.errors.Load()
}

// Total returns the batch size, or TotalUnknown.
func (p *Progress) Total() int64 {
	return p.total
}
