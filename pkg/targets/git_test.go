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
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteOperatorMock serves an in-memory repository instead of a remote one
type remoteOperatorMock struct {
	repo     *git.Repository
	cloneErr error
	onPull   func(w *git.Worktree) error
	clones   int
	pulls    int
}

func (m *remoteOperatorMock) CloneContext(_ context.Context, _ storage.Storer, _ billy.Filesystem, _ *git.CloneOptions) (*git.Repository, error) {
	m.clones++
	if m.cloneErr != nil {
		return nil, m.cloneErr
	}
	return m.repo, nil
}

func (m *remoteOperatorMock) PullContext(_ context.Context, w *git.Worktree, _ *git.PullOptions) error {
	m.pulls++
	if m.onPull != nil {
		return m.onPull(w)
	}
	return git.NoErrAlreadyUpToDate
}

func newInMemoryRepo(t *testing.T) *git.Repository {
	t.Helper()
	r, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	return r
}

func commitFile(t *testing.T, w *git.Worktree, name, content string) {
	t.Helper()
	f, err := w.Filesystem.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = w.Add(name)
	require.NoError(t, err)
	_, err = w.Commit("Update "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "author@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
}

func TestGitProvider_Load(t *testing.T) {
	ctx := context.Background()
	repo := newInMemoryRepo(t)
	w, err := repo.Worktree()
	require.NoError(t, err)
	commitFile(t, w, "dashboard/targets.yaml", exampleDocument)

	op := &remoteOperatorMock{repo: repo}
	p := NewGitProvider(GitConfig{RepoURL: "https://git.home.arpa/lab/config.git", Path: "dashboard/targets.yaml"})
	p.remote = op

	require.NoError(t, p.Load(ctx))
	list, err := p.Targets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 1, op.clones)

	// a pull that brings a new commit
	op.onPull = func(w *git.Worktree) error {
		commitFile(t, w, "dashboard/targets.yaml", "site_name: Pulled\nsites:\n  - name: plex\n    url: http://plex.home.arpa\n")
		return nil
	}
	require.NoError(t, p.Load(ctx))
	doc, err := p.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pulled", doc.SiteName)
	assert.Equal(t, 1, op.clones, "the repository is cloned only once")
	assert.Equal(t, 1, op.pulls)
}

func TestGitProvider_Load_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("clone fails", func(t *testing.T) {
		p := NewGitProvider(GitConfig{RepoURL: "https://git.home.arpa/lab/config.git", Path: "targets.yaml"})
		p.remote = &remoteOperatorMock{cloneErr: errors.New("authentication required")}
		assert.Error(t, p.Load(ctx))
		assert.Nil(t, p.repo)
	})

	t.Run("missing file", func(t *testing.T) {
		repo := newInMemoryRepo(t)
		w, err := repo.Worktree()
		require.NoError(t, err)
		commitFile(t, w, "README.md", "# config")

		p := NewGitProvider(GitConfig{RepoURL: "https://git.home.arpa/lab/config.git", Path: "targets.yaml"})
		p.remote = &remoteOperatorMock{repo: repo}
		assert.Error(t, p.Load(ctx))
	})

	t.Run("pull fails keeps last document", func(t *testing.T) {
		repo := newInMemoryRepo(t)
		w, err := repo.Worktree()
		require.NoError(t, err)
		commitFile(t, w, "targets.yaml", exampleDocument)

		op := &remoteOperatorMock{repo: repo}
		p := NewGitProvider(GitConfig{RepoURL: "https://git.home.arpa/lab/config.git", Path: "targets.yaml"})
		p.remote = op
		require.NoError(t, p.Load(ctx))

		op.onPull = func(*git.Worktree) error { return errors.New("network unreachable") }
		assert.Error(t, p.Load(ctx))
		list, err := p.Targets(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})
}
