// Package gitinfo shells out to git for per-file commit metadata when the
// content tree is a checkout. All operations degrade gracefully: a content
// directory that is not a repository simply yields no metadata.
package gitinfo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Commit holds the metadata attached to generated pages and feeds.
type Commit struct {
	Hash        string
	CommittedAt time.Time
}

// Repository wraps git invocations scoped to one working tree.
type Repository struct {
	dir     string
	gitPath string
	timeout time.Duration
}

// Detect returns a Repository when dir is inside a git working tree, or
// (nil, false) otherwise.
func Detect(gitPath, dir string) (*Repository, bool) {
	if gitPath == "" {
		gitPath = "git"
	}
	probe := dir
	for {
		if info, err := os.Stat(filepath.Join(probe, ".git")); err == nil && info.IsDir() {
			return &Repository{dir: dir, gitPath: gitPath, timeout: 30 * time.Second}, true
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return nil, false
		}
		probe = parent
	}
}

// LastCommit reports the newest commit touching rel (relative to the
// repository directory).
func (r *Repository) LastCommit(ctx context.Context, rel string) (Commit, error) {
	out, err := r.run(ctx, "log", "-1", "--format=%H %ct", "--", rel)
	if err != nil {
		return Commit{}, err
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) != 2 {
		return Commit{}, nil
	}
	epoch, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("parse commit time: %w", err)
	}
	return Commit{Hash: fields[0], CommittedAt: time.Unix(epoch, 0).UTC()}, nil
}

// Pull fast-forwards the working tree; used by the rebuild webhook to sync
// content before regenerating.
func (r *Repository) Pull(ctx context.Context) error {
	out, err := r.run(ctx, "pull", "--ff-only")
	if err != nil {
		return fmt.Errorf("git pull: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

func (r *Repository) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, r.gitPath, append([]string{"-C", r.dir}, args...)...)
	return cmd.CombinedOutput()
}
