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

package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/caas-team/ironshield/internal/logger"
)

// RouteDoc describes the response of a route
type RouteDoc struct {
	Summary     string
	Description string
	Tags        []string
	// ContentTypes of the response; application/json if empty
	ContentTypes []string
	// Schema returns the schema of the response body
	Schema func() (*openapi3.SchemaRef, error)
}

func newDocument(version string) openapi3.T {
	return openapi3.T{
		OpenAPI: "3.0.0",
		Info: &openapi3.Info{
			Title:       "IronShield API",
			Description: "Serves the availability of the bookmarked targets of the dashboard",
			Version:     version,
			Contact: &openapi3.Contact{
				URL:   "https://caas.telekom.de",
				Email: "caas-request@telekom.de",
				Name:  "CaaS Team",
			},
		},
		Paths:      make(openapi3.Paths),
		Extensions: make(map[string]any),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
		Servers: openapi3.Servers{},
	}
}

// GenerateSpecs generates the OpenAPI specification for all documented routes
func GenerateSpecs(ctx context.Context, version string, routes ...Route) (openapi3.T, error) {
	log := logger.FromContext(ctx)
	doc := newDocument(version)

	sorted := slices.Clone(routes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	for _, route := range sorted {
		if route.Doc == nil {
			continue
		}

		content := openapi3.Content{}
		if route.Doc.Schema != nil {
			ref, err := route.Doc.Schema()
			if err != nil {
				log.Error("Failed to get schema for route", "path", route.Path, "error", err)
				return openapi3.T{}, &ErrCreateOpenapiSchema{path: route.Path, err: err}
			}
			types := route.Doc.ContentTypes
			if len(types) == 0 {
				types = []string{"application/json"}
			}
			content = openapi3.NewContentWithSchemaRef(ref, types)
		}

		description := route.Doc.Description
		if description == "" {
			description = route.Doc.Summary
		}
		op := &openapi3.Operation{
			Summary:     route.Doc.Summary,
			Description: route.Doc.Description,
			Tags:        route.Doc.Tags,
			Responses: openapi3.Responses{
				fmt.Sprint(http.StatusOK): &openapi3.ResponseRef{
					Value: &openapi3.Response{
						Description: &description,
						Content:     content,
					},
				},
			},
		}

		item, ok := doc.Paths[route.Path]
		if !ok {
			item = &openapi3.PathItem{}
			doc.Paths[route.Path] = item
		}
		method := route.Method
		if method == "Handle" || method == "HandleFunc" {
			method = http.MethodGet
		}
		item.SetOperation(method, op)
	}

	return doc, nil
}
