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

package shield

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caas-team/ironshield/pkg/bus"
	"github.com/caas-team/ironshield/pkg/config"
	"github.com/caas-team/ironshield/pkg/timeline"
)

func TestShield_handleStream(t *testing.T) {
	s := newTestShield(t, nil)
	cEngine := runEngine(t, s)

	srv := httptest.NewServer(http.HandlerFunc(s.handleStream))
	defer srv.Close()

	res, err := http.Get(srv.URL) //nolint:noctx
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", res.Header.Get("Cache-Control"))

	scanner := bufio.NewScanner(res.Body)
	require.True(t, scanner.Scan())
	line := scanner.Text()
	require.True(t, strings.HasPrefix(line, "data: "), "unexpected line %q", line)

	var initial []timeline.Snapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &initial))
	require.Len(t, initial, 2, "the first event carries every enabled target")

	s.engine.Shutdown(ShutdownMessage)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.GreaterOrEqual(t, len(lines), 3)
	tail := lines[len(lines)-3:]
	assert.Equal(t, []string{"event: shutdown", "data: " + ShutdownMessage, ""}, tail)

	select {
	case err := <-cEngine:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestShield_handleWebsocket(t *testing.T) {
	s := newTestShield(t, nil)
	cEngine := runEngine(t, s)

	srv := httptest.NewServer(http.HandlerFunc(s.handleWebsocket))
	defer srv.Close()

	conn, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer res.Body.Close()
	defer conn.Close()

	var ev bus.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, bus.Update, ev.Kind)
	assert.Len(t, ev.Snapshots, 2)

	s.engine.Shutdown(ShutdownMessage)

	var control *bus.Event
	for control == nil {
		var next bus.Event
		require.NoError(t, conn.ReadJSON(&next))
		if next.Kind == bus.Control {
			control = &next
		}
	}
	assert.Equal(t, ShutdownMessage, control.Message)
	assert.Empty(t, control.Snapshots)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error %v", err)

	select {
	case err := <-cEngine:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestShield_upgrader(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin", allowed: []string{"https://dashboard.example"}, want: true},
		{name: "every origin without restriction", origin: "https://evil.example", want: true},
		{name: "allowed origin", allowed: []string{"https://dashboard.example"}, origin: "https://dashboard.example", want: true},
		{name: "same origin", allowed: []string{"https://dashboard.example"}, origin: "http://example.com", want: true},
		{name: "foreign origin", allowed: []string{"https://dashboard.example"}, origin: "https://evil.example", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Api.AllowedOrigins = tt.allowed
			s := New(cfg, "test")

			req := httptest.NewRequest(http.MethodGet, "http://example.com/uptime/ws", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.upgrader().CheckOrigin(req))
		})
	}
}
