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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	p := NewStatic(Document{
		SiteName: "Home",
		Targets:  []Target{{Name: "grafana", URL: "https://grafana.home.arpa"}},
	})

	_, err := p.Targets(ctx)
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, p.Load(ctx))
	list, err := p.Targets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Target{{ID: "grafana", Name: "grafana", URL: "https://grafana.home.arpa"}}, list)

	doc, err := p.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, Clock24Hour, doc.Clock)

	// callers own their copy
	list[0].URL = "https://changed.example.com"
	again, _ := p.Targets(ctx)
	assert.Equal(t, "https://grafana.home.arpa", again[0].URL)
}

func TestStatic_Invalid(t *testing.T) {
	p := NewStatic(Document{Targets: []Target{{Name: "broken", URL: "not a url"}}})
	assert.Error(t, p.Load(context.Background()))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileProvider_Load(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "targets.yaml")

	p := NewFileProvider(FileConfig{Path: path})
	assert.Error(t, p.Load(ctx), "missing file")

	writeFile(t, path, exampleDocument)
	require.NoError(t, p.Load(ctx))
	list, err := p.Targets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	writeFile(t, path, "sites:\n  - name: broken\n    url: nope\n")
	assert.Error(t, p.Load(ctx))
	list, err = p.Targets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3, "last valid document is kept")
}

func TestFileProvider_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	writeFile(t, path, exampleDocument)

	p := NewFileProvider(FileConfig{Path: path})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Load(ctx))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "site_name: Reloaded\nsites:\n  - name: plex\n    url: http://plex.home.arpa:32400\n")

	assert.Eventually(t, func() bool {
		doc, err := p.Document(ctx)
		return err == nil && doc.SiteName == "Reloaded"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("file provider did not stop")
	}
}
