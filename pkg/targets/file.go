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
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/caas-team/ironshield/internal/logger"
)

var (
	_ DocumentProvider = (*FileProvider)(nil)
	_ Refresher        = (*FileProvider)(nil)
)

// FileConfig configures the file provider
type FileConfig struct {
	// Path is the path of the yaml document
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// FileProvider reads the document from a yaml file and reloads it on change.
// A document that fails to load never replaces the last valid one.
type FileProvider struct {
	*cache
	path string
}

// NewFileProvider creates a provider for the file at path
func NewFileProvider(cfg FileConfig) *FileProvider {
	return &FileProvider{cache: newCache("file"), path: filepath.Clean(cfg.Path)}
}

// Load reads and validates the file
func (f *FileProvider) Load(ctx context.Context) error {
	log := logger.FromContext(ctx).With("path", f.path)

	b, err := os.ReadFile(f.path)
	if err != nil {
		f.failed()
		log.Error("Failed to read target file", "error", err)
		return fmt.Errorf("failed to read target file: %w", err)
	}

	doc, err := Parse(b)
	if err != nil {
		f.failed()
		log.Error("Failed to parse target file", "error", err)
		return err
	}

	f.set(doc)
	log.Info("Loaded target file", "targets", len(doc.Targets))
	return nil
}

// Run watches the directory of the file and reloads the document on change
// until the context is canceled
func (f *FileProvider) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx).With("path", f.path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if cErr := watcher.Close(); cErr != nil {
			log.Warn("Failed to close file watcher", "error", cErr)
		}
	}()

	// editors replace files on save, so the directory is watched
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch target file: %w", err)
	}
	log.Info("Watching target file for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			log.Debug("Target file changed", "op", ev.Op.String())
			if err := f.Load(ctx); err != nil {
				log.Warn("Keeping last valid target document", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("File watcher error", "error", err)
		}
	}
}
