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

package bus

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/caas-team/ironshield/pkg/timeline"
)

// DefaultBuffer is the amount of events queued per subscriber
const DefaultBuffer = 100

// ErrClosed is returned when publishing on a closed bus
var ErrClosed = errors.New("bus is closed")

// SnapshotSource provides the initial state for new subscribers
type SnapshotSource interface {
	SnapshotAll() []timeline.Snapshot
}

// Subscription is the receiving end of a single subscriber
type Subscription struct {
	ID     string
	events chan Event

	// mu guards the fields below and sends on events
	mu sync.Mutex
	// warming is set until the initial Update is queued; events sent
	// meanwhile are kept in backlog
	warming bool
	backlog []Event
	closed  bool
}

// Events returns the channel of the subscription.
// The channel is closed on unsubscribe or when the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Bus fans out events to all subscribers.
//
// Delivery never blocks the publisher: if the buffer of a subscriber is
// full, the event is dropped for that subscriber only. Control events are
// the exception; they evict the oldest queued event instead of being dropped.
type Bus struct {
	source  SnapshotSource
	buffer  int
	metrics metrics

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// New creates a bus whose subscribers start with the state of source.
// A buffer below 1 falls back to [DefaultBuffer].
func New(source SnapshotSource, buffer int) *Bus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Bus{
		source:  source,
		buffer:  buffer,
		metrics: newMetrics(),
		subs:    map[string]*Subscription{},
	}
}

// Subscribe registers a new subscriber. The first event of the subscription
// is an Update with the snapshots of all known targets. Events published
// while that snapshot is taken are queued right after it.
// Subscribing to a closed bus returns a subscription whose channel is
// closed after the initial Update.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		events:  make(chan Event, b.buffer),
		warming: true,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.events <- Event{Kind: Update, Snapshots: b.source.SnapshotAll()}
		close(sub.events)
		return sub
	}
	b.subs[sub.ID] = sub
	b.metrics.subscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()

	initial := Event{Kind: Update, Snapshots: b.source.SnapshotAll()}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return sub
	}
	sub.events <- initial
	for _, ev := range sub.backlog {
		b.deliver(sub, ev)
	}
	sub.backlog = nil
	sub.warming = false
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
// Unknown or already removed subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; !ok {
		return
	}
	delete(b.subs, sub.ID)
	sub.close()
	b.metrics.subscribers.Set(float64(len(b.subs)))
}

// Publish sends an Update with the given snapshots to all subscribers
func (b *Bus) Publish(snapshots []timeline.Snapshot) error {
	return b.send(Event{Kind: Update, Snapshots: snapshots})
}

// Broadcast sends a Control event with the given message to all subscribers
func (b *Bus) Broadcast(message string) error {
	return b.send(Event{Kind: Control, Message: message})
}

func (b *Bus) send(ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for _, sub := range b.subs {
		sub.mu.Lock()
		if sub.warming {
			sub.backlog = append(sub.backlog, ev)
		} else {
			b.deliver(sub, ev)
		}
		sub.mu.Unlock()
	}
	return nil
}

// deliver queues ev without blocking. The caller holds sub.mu.
func (b *Bus) deliver(sub *Subscription, ev Event) {
	if ev.Kind == Control {
		b.force(sub, ev)
		return
	}
	select {
	case sub.events <- ev:
	default:
		b.metrics.dropped.Inc()
	}
}

// force delivers ev by evicting queued events until there is room
func (b *Bus) force(sub *Subscription, ev Event) {
	for {
		select {
		case sub.events <- ev:
			return
		default:
		}
		select {
		case <-sub.events:
			b.metrics.dropped.Inc()
		default:
		}
	}
}

// Close closes all subscriptions. Further publishing returns [ErrClosed].
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
	b.metrics.subscribers.Set(0)
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.backlog = nil
	close(s.events)
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// GetMetricCollectors returns the collectors of the bus
func (b *Bus) GetMetricCollectors() []prometheus.Collector {
	return []prometheus.Collector{b.metrics.subscribers, b.metrics.dropped}
}
