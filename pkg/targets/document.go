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

package targets

import (
	"errors"
	"fmt"
	"net/url"

	"gopkg.in/yaml.v3"
)

// Clock is the clock style shown on the dashboard
type Clock string

const (
	Clock24Hour Clock = "24hour"
	Clock12Hour Clock = "12hour"
	ClockNone   Clock = "none"
)

// Document is the dashboard configuration
type Document struct {
	// SiteName is the title of the dashboard
	SiteName string `json:"site_name" yaml:"site_name" mapstructure:"site_name"`
	// Clock is the clock style; defaults to 24hour
	Clock Clock `json:"clock" yaml:"clock" mapstructure:"clock"`
	// TelemetryEndpoint receives uptime reports if set
	TelemetryEndpoint string `json:"telemetry_endpoint,omitempty" yaml:"telemetry_endpoint" mapstructure:"telemetry_endpoint"`
	// Targets are the monitored bookmarks
	Targets []Target `json:"sites" yaml:"sites" mapstructure:"sites"`
}

// Parse decodes a yaml document, fills in defaults and validates it
func Parse(b []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse target document: %w", err)
	}
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Normalize fills in the defaults of the document
func (d *Document) Normalize() {
	if d.Clock == "" {
		d.Clock = Clock24Hour
	}
	for i := range d.Targets {
		if d.Targets[i].ID == "" {
			d.Targets[i].ID = d.Targets[i].Name
		}
	}
}

// Validate checks the document and returns all problems joined
func (d *Document) Validate() error {
	var errs []error

	switch d.Clock {
	case Clock24Hour, Clock12Hour, ClockNone:
	default:
		errs = append(errs, ErrInvalidConfig{Field: "clock", Reason: fmt.Sprintf("unsupported clock %q", d.Clock)})
	}

	if d.TelemetryEndpoint != "" {
		if err := validateURL(d.TelemetryEndpoint); err != nil {
			errs = append(errs, ErrInvalidConfig{Field: "telemetry_endpoint", Reason: err.Error()})
		}
	}

	seen := map[string]bool{}
	for i, t := range d.Targets {
		field := fmt.Sprintf("sites[%d]", i)
		if t.ID == "" {
			errs = append(errs, ErrInvalidConfig{Field: field + ".id", Reason: "must not be empty"})
		} else if seen[t.ID] {
			errs = append(errs, ErrInvalidConfig{Field: field + ".id", Reason: fmt.Sprintf("duplicate id %q", t.ID)})
		}
		seen[t.ID] = true

		if err := validateURL(t.URL); err != nil {
			errs = append(errs, ErrInvalidConfig{Field: field + ".url", Reason: err.Error()})
		}
		if t.Interval < 0 {
			errs = append(errs, ErrInvalidConfig{Field: field + ".interval", Reason: "must not be negative"})
		}
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
