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

package config

import (
	"time"

	"github.com/caas-team/ironshield/internal/helper"
	"github.com/caas-team/ironshield/pkg/api"
	"github.com/caas-team/ironshield/pkg/engine"
	"github.com/caas-team/ironshield/pkg/targets"
	"github.com/caas-team/ironshield/pkg/telemetry"
)

// Config is the startup configuration of ironshield
type Config struct {
	Engine    engine.Config   `json:"engine" yaml:"engine" mapstructure:"engine"`
	Api       api.Config      `json:"api" yaml:"api" mapstructure:"api"`
	Targets   targets.Config  `json:"targets" yaml:"targets" mapstructure:"targets"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// TelemetryConfig configures where uptime reports are sent to
type TelemetryConfig struct {
	// Endpoint overrides the telemetry endpoint of the target document
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	// DashboardName overrides the site name of the target document
	DashboardName string `json:"dashboardName" yaml:"dashboardName" mapstructure:"dashboardName"`
	// Timeout of a single delivery
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// Archive stores every report in a database if configured
	Archive telemetry.ArchiveConfig `json:"archive" yaml:"archive" mapstructure:"archive"`
}

// LogConfig configures the logger
type LogConfig struct {
	// File additionally writes the logs to a rotating file if set
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// NewConfig creates a new Config with the defaults
func NewConfig() *Config {
	return &Config{
		Engine: engine.Config{
			Interval:         5 * time.Second,
			Timeout:          10 * time.Second,
			Concurrency:      10,
			HistorySize:      20,
			SubscriberBuffer: 100,
		},
		Api: api.Config{
			ListeningAddress: ":8080",
		},
		Targets: targets.Config{
			Type: targets.TypeFile,
			File: targets.FileConfig{Path: "config.yaml"},
		},
		Telemetry: TelemetryConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Decode decodes the loosely typed settings (e.g. viper.AllSettings)
// on top of the defaults
func Decode(settings map[string]any) (*Config, error) {
	cfg := NewConfig()
	overrides, err := helper.Decode[Config](settings)
	if err != nil {
		return nil, err
	}
	cfg.merge(&overrides)
	return cfg, nil
}

// merge takes over all non zero values of o
func (c *Config) merge(o *Config) {
	if o.Engine.Interval != 0 {
		c.Engine.Interval = o.Engine.Interval
	}
	if o.Engine.Timeout != 0 {
		c.Engine.Timeout = o.Engine.Timeout
	}
	if o.Engine.Concurrency != 0 {
		c.Engine.Concurrency = o.Engine.Concurrency
	}
	if o.Engine.HistorySize != 0 {
		c.Engine.HistorySize = o.Engine.HistorySize
	}
	if o.Engine.SubscriberBuffer != 0 {
		c.Engine.SubscriberBuffer = o.Engine.SubscriberBuffer
	}
	if o.Api.ListeningAddress != "" {
		c.Api.ListeningAddress = o.Api.ListeningAddress
	}
	if len(o.Api.AllowedOrigins) > 0 {
		c.Api.AllowedOrigins = o.Api.AllowedOrigins
	}
	if o.Targets.Type != "" {
		c.Targets.Type = o.Targets.Type
	}
	if o.Targets.File.Path != "" {
		c.Targets.File = o.Targets.File
	}
	c.Targets.Static = o.Targets.Static
	c.Targets.HTTP = o.Targets.HTTP
	c.Targets.Git = o.Targets.Git
	c.Telemetry.Endpoint = o.Telemetry.Endpoint
	c.Telemetry.DashboardName = o.Telemetry.DashboardName
	if o.Telemetry.Timeout != 0 {
		c.Telemetry.Timeout = o.Telemetry.Timeout
	}
	c.Telemetry.Archive = o.Telemetry.Archive
	c.Log = o.Log
}
