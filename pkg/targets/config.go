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
	"strings"
)

const (
	TypeStatic = "static"
	TypeFile   = "file"
	TypeHTTP   = "http"
	TypeGit    = "git"
)

// Config selects and configures the target provider
type Config struct {
	// Type is one of static, file, http or git
	Type   string     `json:"type" yaml:"type" mapstructure:"type"`
	Static Document   `json:"static" yaml:"static" mapstructure:"static"`
	File   FileConfig `json:"file" yaml:"file" mapstructure:"file"`
	HTTP   HTTPConfig `json:"http" yaml:"http" mapstructure:"http"`
	Git    GitConfig  `json:"git" yaml:"git" mapstructure:"git"`
}

// Validate checks the settings of the selected provider
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Type) {
	case TypeStatic:
	case TypeFile:
		if c.File.Path == "" {
			errs = append(errs, ErrInvalidConfig{Field: "targets.file.path", Reason: "must not be empty"})
		}
	case TypeHTTP:
		if err := validateURL(c.HTTP.URL); err != nil {
			errs = append(errs, ErrInvalidConfig{Field: "targets.http.url", Reason: err.Error()})
		}
		if c.HTTP.Retry.Count < 0 {
			errs = append(errs, ErrInvalidConfig{Field: "targets.http.retry.count", Reason: "must not be negative"})
		}
	case TypeGit:
		if c.Git.RepoURL == "" {
			errs = append(errs, ErrInvalidConfig{Field: "targets.git.repoUrl", Reason: "must not be empty"})
		}
		if c.Git.Path == "" {
			errs = append(errs, ErrInvalidConfig{Field: "targets.git.path", Reason: "must not be empty"})
		}
	default:
		errs = append(errs, ErrUnknownProvider{Type: c.Type})
	}
	return errors.Join(errs...)
}

// New creates the provider selected by the config
func New(cfg *Config) (DocumentProvider, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeStatic:
		return NewStatic(cfg.Static), nil
	case TypeFile:
		return NewFileProvider(cfg.File), nil
	case TypeHTTP:
		return NewHTTPProvider(cfg.HTTP), nil
	case TypeGit:
		return NewGitProvider(cfg.Git), nil
	default:
		return nil, ErrUnknownProvider{Type: cfg.Type}
	}
}
