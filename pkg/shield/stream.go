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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/bus"
	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds a single write to a stream client
	writeTimeout = 10 * time.Second
	// closeGracePeriod is the time a websocket client gets to answer the close frame
	closeGracePeriod = time.Second
)

// handleStream streams every event of a subscription as server sent events.
// Updates are sent as data lines with a json array of snapshots,
// the shutdown notification as a "shutdown" event which ends the stream.
func (s *Shield) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	rc := http.NewResponseController(w)

	deadlines := true
	send := func(event string, data []byte) error {
		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Debug("Write deadlines not supported", "error", err)
				deadlines = false
			}
		}
		if event != "" {
			if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.engine.Subscribe()
	defer s.engine.Unsubscribe(sub)
	log.Debug("Stream client connected", "subscriber", sub.ID)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case bus.Update:
				data, err := json.Marshal(ev.Snapshots)
				if err != nil {
					log.Error("Failed to encode snapshots", "error", err)
					continue
				}
				if err := send("", data); err != nil {
					log.Debug("Stream client gone", "subscriber", sub.ID, "error", err)
					return
				}
			case bus.Control:
				if err := send("shutdown", []byte(ev.Message)); err != nil {
					log.Debug("Could not notify stream client about shutdown", "subscriber", sub.ID, "error", err)
				}
				return
			}
		}
	}
}

// upgrader returns a websocket upgrader accepting same origin requests
// and the configured allowed origins
func (s *Shield) upgrader() *websocket.Upgrader {
	allowed := s.cfg.Api.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || slices.Contains(allowed, origin) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(strings.TrimSpace(u.Host), strings.TrimSpace(r.Host))
		},
	}
}

// handleWebsocket streams every event of a subscription as json frames.
// The connection is closed after the shutdown notification.
func (s *Shield) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		if cErr := conn.Close(); cErr != nil {
			log.Debug("Failed to close websocket", "error", cErr)
		}
	}()

	sub := s.engine.Subscribe()
	defer s.engine.Unsubscribe(sub)
	log.Debug("Websocket client connected", "subscriber", sub.ID)

	// the client never sends data, reading only detects a closed connection
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				closeWebsocket(conn, websocket.CloseGoingAway, "")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("Websocket client gone", "subscriber", sub.ID, "error", err)
				return
			}
			if ev.Kind == bus.Control {
				closeWebsocket(conn, websocket.CloseGoingAway, ev.Message)
				select {
				case <-gone:
				case <-time.After(closeGracePeriod):
				}
				return
			}
		}
	}
}

func closeWebsocket(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
