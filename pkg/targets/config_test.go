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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantType any
	}{
		{name: "static", cfg: Config{Type: "static"}, wantType: &Static{}},
		{name: "file", cfg: Config{Type: "file", File: FileConfig{Path: "/etc/ironshield/targets.yaml"}}, wantType: &FileProvider{}},
		{name: "file without path", cfg: Config{Type: "file"}, wantErr: true, wantType: &FileProvider{}},
		{name: "http", cfg: Config{Type: "HTTP", HTTP: HTTPConfig{URL: "https://config.home.arpa/targets.yaml"}}, wantType: &HTTPProvider{}},
		{name: "http with invalid url", cfg: Config{Type: "http", HTTP: HTTPConfig{URL: "config"}}, wantErr: true, wantType: &HTTPProvider{}},
		{name: "git", cfg: Config{Type: "git", Git: GitConfig{RepoURL: "https://git.home.arpa/config.git", Path: "targets.yaml"}}, wantType: &GitProvider{}},
		{name: "git without path", cfg: Config{Type: "git", Git: GitConfig{RepoURL: "https://git.home.arpa/config.git"}}, wantErr: true, wantType: &GitProvider{}},
		{name: "unknown", cfg: Config{Type: "consul"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			p, err := New(&tt.cfg)
			if tt.wantType == nil {
				var unknown ErrUnknownProvider
				assert.ErrorAs(t, err, &unknown)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
		})
	}
}
