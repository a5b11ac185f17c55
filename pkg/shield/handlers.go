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
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/api"
	"github.com/caas-team/ironshield/pkg/targets"
	"github.com/caas-team/ironshield/pkg/telemetry"
	"github.com/caas-team/ironshield/pkg/timeline"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

type encoder interface {
	Encode(v any) error
}

const (
	urlParamTargetID    = "id"
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// ClickRequest is the body of a bookmark click sent by the dashboard
type ClickRequest struct {
	SiteName string `json:"site_name"`
	SiteURL  string `json:"site_url"`
}

func schemaOf(v any) func() (*openapi3.SchemaRef, error) {
	return func() (*openapi3.SchemaRef, error) {
		return openapi3gen.NewSchemaRefForValue(v, openapi3.Schemas{})
	}
}

// routes returns all routes served by the shield
func (s *Shield) routes() []api.Route {
	routes := []api.Route{
		{
			Path: "/api/status", Method: http.MethodGet, Handler: s.handleStatus,
			Doc: &api.RouteDoc{
				Summary: "Returns the availability of all monitored targets",
				Tags:    []string{"Uptime"},
				Schema:  schemaOf([]timeline.Snapshot{}),
			},
		},
		{
			Path: "/api/config", Method: http.MethodGet, Handler: s.handleConfig,
			Doc: &api.RouteDoc{
				Summary: "Returns the current dashboard document",
				Tags:    []string{"Config"},
				Schema:  schemaOf(targets.Document{}),
			},
		},
		{
			Path: "/api/track-click", Method: http.MethodPost, Handler: s.handleTrackClick,
			Doc: &api.RouteDoc{
				Summary:     "Forwards a bookmark click to the telemetry collector",
				Description: "Responds with 202 Accepted; the click is forwarded asynchronously",
				Tags:        []string{"Telemetry"},
			},
		},
		{
			Path: "/uptime", Method: http.MethodGet, Handler: s.handleStream,
			Doc: &api.RouteDoc{
				Summary:      "Streams the availability of all targets as server sent events",
				Tags:         []string{"Uptime"},
				ContentTypes: []string{"text/event-stream"},
				Schema:       schemaOf([]timeline.Snapshot{}),
			},
		},
		{
			Path: "/uptime/ws", Method: http.MethodGet, Handler: s.handleWebsocket,
			Doc: &api.RouteDoc{
				Summary: "Streams the availability of all targets over a websocket",
				Tags:    []string{"Uptime"},
			},
		},
		{Path: "/openapi", Method: http.MethodGet, Handler: s.handleOpenAPI},
		{Path: "/metrics", Method: "Handle", Handler: s.metrics.Handler().ServeHTTP},
	}

	if s.archive != nil {
		routes = append(routes, api.Route{
			Path: "/api/history/{" + urlParamTargetID + "}", Method: http.MethodGet, Handler: s.handleHistory,
			Doc: &api.RouteDoc{
				Summary: "Returns the archived observations of a target, newest first",
				Tags:    []string{"Uptime"},
				Schema:  schemaOf([]telemetry.Record{}),
			},
		})
	}
	return routes
}

func (s *Shield) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.engine.Snapshots())
}

func (s *Shield) handleConfig(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	doc, err := s.provider.Document(r.Context())
	if err != nil {
		log.Error("Failed to get dashboard document", "error", err)
		writeStatus(r.Context(), w, http.StatusServiceUnavailable)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, doc)
}

func (s *Shield) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, urlParamTargetID)
	if id == "" {
		writeStatus(r.Context(), w, http.StatusBadRequest)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 {
			writeStatus(r.Context(), w, http.StatusBadRequest)
			return
		}
		limit = min(l, maxHistoryLimit)
	}

	records, err := s.archive.History(r.Context(), id, limit)
	if err != nil {
		log.Error("Failed to read history", "target", id, "error", err)
		writeStatus(r.Context(), w, http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		writeStatus(r.Context(), w, http.StatusNotFound)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, records)
}

// handleTrackClick validates the click and forwards it in the background
func (s *Shield) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var click ClickRequest
	if err := json.NewDecoder(r.Body).Decode(&click); err != nil {
		log.Debug("Invalid click request", "error", err)
		writeStatus(r.Context(), w, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(click.SiteName) == "" || strings.TrimSpace(click.SiteURL) == "" {
		w.WriteHeader(http.StatusBadRequest)
		if _, err := w.Write([]byte("site_name and site_url are required")); err != nil {
			log.Error("Failed to write response", "error", err)
		}
		return
	}

	ctx := context.WithoutCancel(r.Context())
	headers := r.Header.Clone()
	go func() {
		if err := s.notifier.ForwardClick(ctx, click.SiteName, click.SiteURL, headers); err != nil {
			log.Warn("Failed to send click telemetry", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (s *Shield) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	oapi, err := api.GenerateSpecs(r.Context(), s.version, s.routes()...)
	if err != nil {
		log.Error("Failed to create openapi", "error", err)
		writeStatus(r.Context(), w, http.StatusInternalServerError)
		return
	}

	mime := r.Header.Get("Accept")

	var marshaler encoder
	switch mime {
	case "application/json":
		marshaler = json.NewEncoder(w)
		w.Header().Add("Content-Type", "application/json")
	default:
		marshaler = yaml.NewEncoder(w)
		w.Header().Add("Content-Type", "text/yaml")
	}

	err = marshaler.Encode(oapi)
	if err != nil {
		log.Error("Failed to marshal openapi", "error", err)
		writeStatus(r.Context(), w, http.StatusInternalServerError)
		return
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	log := logger.FromContext(ctx)
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to encode response", "error", err)
		writeStatus(ctx, w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}

// writeStatus writes the status code with its text as body
func writeStatus(ctx context.Context, w http.ResponseWriter, code int) {
	w.WriteHeader(code)
	if _, err := w.Write([]byte(http.StatusText(code))); err != nil {
		logger.FromContext(ctx).Error("Failed to write response", "error", err)
	}
}
