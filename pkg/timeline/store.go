// ironshield
// (C) 2024, Deutsche Telekom IT GmbH
//
// Deutsche Telekom IT GmbH and all other contributors /
// copyright owners license this file to you under the Apache
// License, Version 2.0 (the "License"); you may not use this
// file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package timeline

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the amount of samples kept per target
const DefaultCapacity = 20

// timeline is the bounded history of one target
type timeline struct {
	samples []Sample
	// last is the newest resolved classification
	last Classification
	// lastLatency is the latency of the newest resolved sample
	lastLatency *time.Duration
	// active is false for targets that are no longer configured
	active bool
}

// push appends the sample and evicts the oldest one beyond capacity
func (t *timeline) push(s Sample, capacity int) {
	t.samples = append(t.samples, s)
	if over := len(t.samples) - capacity; over > 0 {
		t.samples = slices.Delete(t.samples, 0, over)
	}
}

func (t *timeline) trailingPending() bool {
	return len(t.samples) > 0 && t.samples[len(t.samples)-1].Classification == Pending
}

func (t *timeline) snapshot(id string, now time.Time) Snapshot {
	history := make([]Classification, len(t.samples))
	for i, s := range t.samples {
		history[i] = s.Classification
	}

	status := t.last
	if len(t.samples) > 0 {
		status = t.samples[len(t.samples)-1].Classification
	}
	if status == "" {
		status = Pending
	}

	return Snapshot{
		TargetID:       id,
		Status:         status,
		LastResolved:   t.last,
		History:        history,
		Availability:   Availability(t.samples),
		Timestamp:      now.Unix(),
		ResponseTimeMs: durationToMs(t.lastLatency),
	}
}

// Store keeps the timelines of all targets.
// It is safe for concurrent use; no method performs I/O while holding the lock.
type Store struct {
	mu        sync.RWMutex
	capacity  int
	timelines map[string]*timeline
}

// NewStore creates a store keeping capacity samples per target.
// A capacity below 1 falls back to [DefaultCapacity].
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:  capacity,
		timelines: map[string]*timeline{},
	}
}

// Capacity returns the maximum amount of samples per target
func (s *Store) Capacity() int {
	return s.capacity
}

// get returns the timeline of the target and creates it if necessary.
// The caller must hold the write lock.
func (s *Store) get(id string) *timeline {
	t, ok := s.timelines[id]
	if !ok {
		t = &timeline{active: true}
		s.timelines[id] = t
	}
	return t
}

// Reconcile marks the given ids as the active targets. Timelines of new ids are
// created, timelines of ids missing from the list are kept but no longer reported
// by [Store.SnapshotAll].
func (s *Store) Reconcile(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.timelines {
		t.active = false
	}
	for _, id := range ids {
		s.get(id).active = true
	}
}

// BeginCheck appends a pending sample for the target.
// If the newest sample is already pending, nothing changes.
func (s *Store) BeginCheck(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.get(id)
	t.active = true
	if t.trailingPending() {
		return
	}
	t.push(Sample{Classification: Pending}, s.capacity)
}

// CompleteCheck records the result of a finished check. A trailing pending
// sample is replaced in place, otherwise the sample is appended and the oldest
// sample is evicted once the capacity is exceeded.
// Pending is not a result and is ignored.
func (s *Store) CompleteCheck(id string, c Classification, latency time.Duration) {
	if !c.Resolved() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.get(id)
	sample := Sample{Classification: c, Latency: &latency}
	if t.trailingPending() {
		t.samples[len(t.samples)-1] = sample
	} else {
		t.push(sample, s.capacity)
	}
	t.last = c
	t.lastLatency = &latency
}

// Snapshot returns the current state of the target
func (s *Store) Snapshot(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.timelines[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(id, time.Now()), true
}

// Snapshots returns the current state of the given targets in the given order.
// Unknown ids are skipped.
func (s *Store) Snapshots(ids []string) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	snaps := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.timelines[id]; ok {
			snaps = append(snaps, t.snapshot(id, now))
		}
	}
	return snaps
}

// SnapshotAll returns the state of all active targets sorted by id
func (s *Store) SnapshotAll() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	snaps := make([]Snapshot, 0, len(s.timelines))
	for id, t := range s.timelines {
		if t.active {
			snaps = append(snaps, t.snapshot(id, now))
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].TargetID < snaps[j].TargetID
	})
	return snaps
}

// Samples returns a copy of the samples of the target, oldest first
func (s *Store) Samples(id string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.timelines[id]
	if !ok {
		return nil
	}
	return slices.Clone(t.samples)
}

// Len returns the amount of samples of the target
func (s *Store) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.timelines[id]; ok {
		return len(t.samples)
	}
	return 0
}
