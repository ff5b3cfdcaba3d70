// Package prob implements fully features dynamic probabilistic filter.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package prob

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// Filter is a concurrency-safe cuckoo filter used for fast-reject
// membership checks: "have I already seen this key" without keeping
// every key around. False positives are possible; false negatives are
// not.
type Filter struct {
	mu sync.Mutex
	cf *cuckoo.Filter
}

// NewDefault returns a filter sized for capacity expected insertions.
func NewDefault(capacity uint) *Filter {
	return &Filter{cf: cuckoo.NewFilter(capacity)}
}

// InsertUnique adds b if it is not already present, reporting whether
// an insert happened.
func (f *Filter) InsertUnique(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cf.Lookup(b) {
		return false
	}
	return f.cf.InsertUnique(b)
}

// Lookup reports whether b was (probably) inserted before.
func (f *Filter) Lookup(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Lookup(b)
}

// Delete removes b, if present, reducing future false positives for it.
func (f *Filter) Delete(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Delete(b)
}

// Reset discards all inserted keys.
func (f *Filter) Reset(capacity uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cf = cuckoo.NewFilter(capacity)
}

// Count reports the approximate number of items currently tracked.
func (f *Filter) Count() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Count()
}
