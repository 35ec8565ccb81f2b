// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package repo queries repository metadata by running the git command-line
// tool.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DateLayout is the layout of git's default author date format.
const DateLayout = "Mon Jan 2 15:04:05 2006 -0700"

// ErrUnexpectedOutput is wrapped by [QueryError] when git succeeds but
// prints something that cannot be parsed.
var ErrUnexpectedOutput = errors.New("unexpected git output")

// QueryError reports a failed or unparseable git invocation.
type QueryError struct {
	// Args are the git arguments, without the leading "git".
	Args []string
	// Output is the captured standard error or offending output.
	Output string
	// Err is the underlying error.
	Err error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ":\n" + out
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Err }

// Entry is one history entry for a file.
type Entry struct {
	Author string
	Time   time.Time
}

// Repo is a git repository rooted at a working tree top-level directory.
// It is safe for concurrent use.
type Repo struct {
	root string

	// stageMu serializes index updates; concurrent "git add" invocations
	// race for index.lock.
	stageMu sync.Mutex
}

// Root returns the top-level directory of the repository containing dir.
func Root(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", &QueryError{Args: []string{"rev-parse", "--show-toplevel"}, Err: ErrUnexpectedOutput}
	}
	return root, nil
}

// Open returns the repository containing dir.
func Open(ctx context.Context, dir string) (*Repo, error) {
	root, err := Root(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &Repo{root: root}, nil
}

// Dir returns the repository top-level directory.
func (r *Repo) Dir() string { return r.root }

// User returns the configured user name of the invoking user.
func (r *Repo) User(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "config", "user.name")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// StagedFiles returns the paths, relative to the repository root, that are
// staged for the next commit, in git's listing order.
func (r *Repo) StagedFiles(ctx context.Context) ([]string, error) {
	// -z prints names verbatim instead of C-quoting unusual characters.
	out, err := r.git(ctx, "diff", "--cached", "--name-only", "-z", "--diff-filter=d")
	if err != nil {
		return nil, err
	}
	var files []string
	for name := range strings.SplitSeq(string(out), "\x00") {
		if name != "" {
			files = append(files, name)
		}
	}
	return files, nil
}

// Created returns the earliest history entry that added path, following
// renames. ok is false if the file has no history.
func (r *Repo) Created(ctx context.Context, path string) (e Entry, ok bool, err error) {
	args := []string{"log", "--diff-filter=A", "--follow", "--date=default", "--format=%an|%ad", "--", path}
	out, err := r.git(ctx, args...)
	if err != nil {
		return Entry{}, false, err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	// Log is newest first.
	return parseEntry(args, lines[len(lines)-1])
}

// LastModified returns the most recent history entry touching path.
// ok is false if the file has no history.
func (r *Repo) LastModified(ctx context.Context, path string) (e Entry, ok bool, err error) {
	args := []string{"log", "-1", "--date=default", "--format=%an|%ad", "--", path}
	out, err := r.git(ctx, args...)
	if err != nil {
		return Entry{}, false, err
	}
	return parseEntry(args, strings.TrimSpace(string(out)))
}

func parseEntry(args []string, line string) (Entry, bool, error) {
	if line == "" {
		return Entry{}, false, nil
	}
	i := strings.LastIndexByte(line, '|')
	if i < 0 {
		return Entry{}, false, &QueryError{Args: args, Output: line, Err: ErrUnexpectedOutput}
	}
	t, err := time.Parse(DateLayout, line[i+1:])
	if err != nil {
		return Entry{}, false, &QueryError{Args: args, Output: line, Err: fmt.Errorf("%w: %w", ErrUnexpectedOutput, err)}
	}
	return Entry{Author: line[:i], Time: t}, true, nil
}

// HooksDir returns the directory git runs hooks from. It honors
// core.hooksPath and points into the common directory from linked worktrees.
func (r *Repo) HooksDir(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return "", &QueryError{Args: []string{"rev-parse", "--git-path", "hooks"}, Err: ErrUnexpectedOutput}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.root, dir)
	}
	return filepath.Clean(dir), nil
}

// Diff returns the zero-context diff of path against the last commit,
// covering both staged and unstaged changes.
func (r *Repo) Diff(ctx context.Context, path string) ([]byte, error) {
	return r.git(ctx, "diff", "--no-color", "--no-ext-diff", "-U0", "HEAD", "--", path)
}

// Stage marks the current content of path for the next commit.
func (r *Repo) Stage(ctx context.Context, path string) error {
	r.stageMu.Lock()
	defer r.stageMu.Unlock()
	_, err := r.git(ctx, "add", "--", path)
	return err
}

func (r *Repo) git(ctx context.Context, args ...string) ([]byte, error) {
	return run(ctx, r.root, args...)
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &QueryError{Args: args, Output: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
