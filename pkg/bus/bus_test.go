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
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caas-team/ironshield/pkg/timeline"
)

type staticSource []timeline.Snapshot

func (s staticSource) SnapshotAll() []timeline.Snapshot { return s }

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBus_Subscribe_InitialUpdate(t *testing.T) {
	source := staticSource{
		{TargetID: "grafana", Status: timeline.Reachable},
		{TargetID: "nas", Status: timeline.Pending},
	}
	b := New(source, 4)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	require.NoError(t, b.Publish([]timeline.Snapshot{{TargetID: "nas", Status: timeline.Unreachable}}))

	first := receive(t, sub)
	assert.Equal(t, Update, first.Kind)
	assert.Equal(t, []timeline.Snapshot(source), first.Snapshots)

	second := receive(t, sub)
	assert.Equal(t, "nas", second.Snapshots[0].TargetID)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 1, b.Len())
}

func TestBus_Publish_FanOut(t *testing.T) {
	b := New(staticSource{}, 4)
	subs := []*Subscription{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	for _, sub := range subs {
		receive(t, sub)
	}

	require.NoError(t, b.Publish([]timeline.Snapshot{{TargetID: "plex"}}))
	for _, sub := range subs {
		ev := receive(t, sub)
		assert.Equal(t, "plex", ev.Snapshots[0].TargetID)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(b.metrics.subscribers))
}

func TestBus_Publish_SlowSubscriber(t *testing.T) {
	b := New(staticSource{}, 2)
	slow := b.Subscribe()
	fast := b.Subscribe()
	receive(t, fast)

	// slow already holds the initial update and has room for one more
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish([]timeline.Snapshot{{TargetID: "router"}}))
		receive(t, fast)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(b.metrics.dropped))
	assert.Len(t, slow.Events(), 2)
}

func TestBus_Broadcast_EvictsWhenFull(t *testing.T) {
	b := New(staticSource{}, 1)
	sub := b.Subscribe()

	require.NoError(t, b.Broadcast("Server is shutting down for maintenance"))

	ev := receive(t, sub)
	assert.Equal(t, Control, ev.Kind)
	assert.Equal(t, "Server is shutting down for maintenance", ev.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.dropped))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(staticSource{}, 4)
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	receive(t, sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
	assert.NoError(t, b.Publish(nil))
}

func TestBus_Close(t *testing.T) {
	b := New(staticSource{}, 4)
	sub := b.Subscribe()
	b.Close()
	b.Close()

	assert.ErrorIs(t, b.Publish(nil), ErrClosed)
	assert.ErrorIs(t, b.Broadcast("bye"), ErrClosed)

	receive(t, sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)

	late := b.Subscribe()
	receive(t, late)
	_, ok = <-late.Events()
	assert.False(t, ok, "subscriptions of a closed bus are closed")
	assert.Equal(t, 0, b.Len())
}

func TestBus_Concurrency(t *testing.T) {
	b := New(staticSource{}, DefaultBuffer)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := b.Subscribe()
			b.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			_ = b.Publish([]timeline.Snapshot{{TargetID: "grafana"}})
		}()
	}
	wg.Wait()
	b.Close()
	assert.Equal(t, 0, b.Len())
}

// gatedSource blocks SnapshotAll until it is released
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	state   []timeline.Snapshot
}

func (g *gatedSource) SnapshotAll() []timeline.Snapshot {
	close(g.entered)
	<-g.release
	return g.state
}

func TestBus_Subscribe_PublishWhileWarming(t *testing.T) {
	source := &gatedSource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		state:   []timeline.Snapshot{{TargetID: "grafana", Status: timeline.Pending}},
	}
	b := New(source, 4)

	subscribed := make(chan *Subscription, 1)
	go func() { subscribed <- b.Subscribe() }()

	<-source.entered
	assert.Equal(t, 1, b.Len(), "subscription is registered before the snapshot is taken")
	require.NoError(t, b.Publish([]timeline.Snapshot{{TargetID: "grafana", Status: timeline.Reachable}}))
	require.NoError(t, b.Broadcast("Server is shutting down for maintenance"))
	close(source.release)

	sub := <-subscribed
	defer b.Unsubscribe(sub)

	first := receive(t, sub)
	assert.Equal(t, Update, first.Kind)
	assert.Equal(t, timeline.Pending, first.Snapshots[0].Status)

	second := receive(t, sub)
	assert.Equal(t, Update, second.Kind)
	assert.Equal(t, timeline.Reachable, second.Snapshots[0].Status, "publish during warm up is not lost")

	third := receive(t, sub)
	assert.Equal(t, Control, third.Kind)
	assert.Zero(t, testutil.ToFloat64(b.metrics.dropped))
}

func TestBus_Close_WhileWarming(t *testing.T) {
	source := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	b := New(source, 4)

	subscribed := make(chan *Subscription, 1)
	go func() { subscribed <- b.Subscribe() }()

	<-source.entered
	require.NoError(t, b.Publish([]timeline.Snapshot{{TargetID: "nas"}}))
	b.Close()
	close(source.release)

	sub := <-subscribed
	_, ok := <-sub.Events()
	assert.False(t, ok, "no event is queued on a subscription closed during warm up")
	assert.Equal(t, 0, b.Len())
}
