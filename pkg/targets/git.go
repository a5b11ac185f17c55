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
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/caas-team/ironshield/internal/logger"
)

var (
	_ DocumentProvider = (*GitProvider)(nil)
	_ Refresher        = (*GitProvider)(nil)
)

// GitConfig configures the git provider
type GitConfig struct {
	// RepoURL is the URL of the git repository
	RepoURL string `json:"repoUrl" yaml:"repoUrl" mapstructure:"repoUrl"`
	// Branch to check out; the remote HEAD if empty
	Branch string `json:"branch" yaml:"branch" mapstructure:"branch"`
	// Path of the yaml document inside the repository
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Token is the personal access token used to authenticate with the repository
	Token string `json:"token" yaml:"token" mapstructure:"token"`
	// Interval between two pulls
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
}

// remoteOperator performs the remote operations on the git repository
type remoteOperator interface {
	// CloneContext clones the git repository
	CloneContext(ctx context.Context, store storage.Storer, fs billy.Filesystem, o *git.CloneOptions) (*git.Repository, error)
	// PullContext pulls the changes from the remote repository
	PullContext(ctx context.Context, w *git.Worktree, o *git.PullOptions) error
}

type operator struct{}

func (operator) CloneContext(ctx context.Context, store storage.Storer, fs billy.Filesystem, o *git.CloneOptions) (*git.Repository, error) {
	return git.CloneContext(ctx, store, fs, o)
}

func (operator) PullContext(ctx context.Context, w *git.Worktree, o *git.PullOptions) error {
	return w.PullContext(ctx, o)
}

// GitProvider reads the document from a file in a git repository.
// The repository is cloned into memory and pulled on every refresh.
type GitProvider struct {
	*cache
	cfg    GitConfig
	auth   transport.AuthMethod
	remote remoteOperator
	repo   *git.Repository
}

// NewGitProvider creates a provider for the document in the repository
func NewGitProvider(cfg GitConfig) *GitProvider {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	var auth transport.AuthMethod
	if cfg.Token != "" {
		auth = &http.BasicAuth{
			Username: "ironshield",
			Password: cfg.Token,
		}
	}
	return &GitProvider{
		cache:  newCache("git"),
		cfg:    cfg,
		auth:   auth,
		remote: operator{},
	}
}

// Load syncs the repository and reads the document from the HEAD commit
func (g *GitProvider) Load(ctx context.Context) error {
	log := logger.FromContext(ctx).With("repo", g.cfg.RepoURL, "path", g.cfg.Path)

	if err := g.syncWithRemote(ctx); err != nil {
		g.failed()
		log.Error("Failed to sync local repository with remote", "error", err)
		return err
	}

	content, err := g.readFile()
	if err != nil {
		g.failed()
		log.Error("Failed to read target document from repository", "error", err)
		return err
	}

	doc, err := Parse([]byte(content))
	if err != nil {
		g.failed()
		log.Error("Failed to parse target document from repository", "error", err)
		return err
	}

	g.set(doc)
	log.Info("Loaded target document from repository", "targets", len(doc.Targets))
	return nil
}

// Run pulls the repository every interval until the context is canceled
func (g *GitProvider) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.Load(ctx); err != nil {
				log.Warn("Keeping last valid target document", "error", err)
			}
		}
	}
}

// syncWithRemote clones the repository on first use and pulls afterwards
func (g *GitProvider) syncWithRemote(ctx context.Context) error {
	if g.repo == nil {
		opts := &git.CloneOptions{
			URL:   g.cfg.RepoURL,
			Auth:  g.auth,
			Depth: 1,
		}
		if g.cfg.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(g.cfg.Branch)
			opts.SingleBranch = true
		}
		repo, err := g.remote.CloneContext(ctx, memory.NewStorage(), memfs.New(), opts)
		if err != nil {
			return fmt.Errorf("failed to clone repository: %w", err)
		}
		g.repo = repo
		return nil
	}

	w, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := w.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset the worktree: %w", err)
	}

	opts := &git.PullOptions{
		RemoteName: "origin",
		Auth:       g.auth,
		Depth:      1,
	}
	if g.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.cfg.Branch)
	}
	err = g.remote.PullContext(ctx, w, opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull from repository: %w", err)
	}
	return nil
}

// readFile returns the content of the document in the latest commit tree
func (g *GitProvider) readFile() (string, error) {
	ref, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := g.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to get commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to get tree: %w", err)
	}

	f, err := tree.File(g.cfg.Path)
	if err != nil {
		return "", fmt.Errorf("failed to find %s: %w", g.cfg.Path, err)
	}
	return f.Contents()
}
