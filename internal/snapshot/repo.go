// Versions snapshot files in a git repository using go-git.

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/maruel/fdb/internal/errors"
	"github.com/maruel/fdb/internal/fdb"
)

// Author identifies who commits snapshots.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is a summary of one snapshot commit.
type Commit struct {
	Hash    string
	Message string
	Author  string
	When    time.Time
}

// Repo stores table snapshots in a git working tree, one file per table.
type Repo struct {
	dir    string
	author Author
	repo   *gogit.Repository
	mu     sync.Mutex
}

// OpenRepo opens the git repository at dir, initializing it when needed.
func OpenRepo(dir string, author Author) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, errors.Storage("failed to create repo directory", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, errors.Storage("failed to initialize git repo", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, errors.Storage("failed to read git config", err)
		}
		cfg.User.Name = author.Name
		cfg.User.Email = author.Email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, errors.Storage("failed to write git config", err)
		}
	}
	return &Repo{dir: dir, author: author, repo: repo}, nil
}

// Dir returns the working tree root.
func (r *Repo) Dir() string {
	return r.dir
}

// FileName returns the snapshot file name of the named table.
func FileName(table string) string {
	return table + ".jsonl"
}

// Path returns the snapshot path of the named table.
func (r *Repo) Path(table string) string {
	return filepath.Join(r.dir, FileName(table))
}

// Load reads the named table's snapshot from the working tree.
func (r *Repo) Load(table string, sink fdb.SQLSink) (*fdb.Table, error) {
	return Load(r.Path(table), sink)
}

// Commit saves t and commits its snapshot file. It returns an empty hash
// when the snapshot did not change.
func (r *Repo) Commit(ctx context.Context, t *fdb.Table, msg string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := FileName(t.Name())
	if err := Save(filepath.Join(r.dir, name), t); err != nil {
		return "", err
	}

	w, err := r.repo.Worktree()
	if err != nil {
		return "", errors.Storage("failed to get worktree", err)
	}
	if _, err := w.Add(name); err != nil {
		return "", errors.Storage("failed to stage snapshot", err)
	}
	status, err := w.Status()
	if err != nil {
		return "", errors.Storage("failed to get worktree status", err)
	}
	// Other files in the tree are not ours to commit.
	if fs, ok := status[name]; !ok || fs.Staging == gogit.Unmodified {
		slog.DebugContext(ctx, "snapshot unchanged", "table", t.Name())
		return "", nil
	}
	if msg == "" {
		msg = fmt.Sprintf("%s: %d rows in %d buckets", t.Name(), t.Len(), t.BucketCount())
	}
	h, err := w.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  r.author.Name,
			Email: r.author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", errors.Storage("failed to commit", err)
	}
	slog.InfoContext(ctx, "committed snapshot", "table", t.Name(), "commit", h.String())
	return h.String(), nil
}

// History returns up to n commits touching the named table, newest first.
func (r *Repo) History(table string, n int) ([]Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	name := FileName(table)
	it, err := r.repo.Log(&gogit.LogOptions{FileName: &name})
	if err != nil {
		// No commits yet.
		return nil, nil
	}
	defer it.Close()

	var out []Commit
	for range n {
		c, err := it.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
	}
	return out, nil
}
