// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package fileset selects the repository files a tool operates on.
package fileset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MetadataDir is the name of git's own metadata directory. It is never
// descended into.
const MetadataDir = ".git"

// Scope selects which files are considered.
type Scope int

const (
	// All selects every file in the working tree.
	All Scope = iota
	// Changed selects files staged for the next commit.
	Changed
)

// ErrInvalidScope is returned for unknown scope names.
var ErrInvalidScope = errors.New("invalid scope")

// ParseScope parses "all" or "changed".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "all":
		return All, nil
	case "changed":
		return Changed, nil
	default:
		return 0, fmt.Errorf("%w %q: want \"changed\" or \"all\"", ErrInvalidScope, s)
	}
}

func (s Scope) String() string {
	switch s {
	case All:
		return "all"
	case Changed:
		return "changed"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// Matcher reports whether a slash-separated path relative to the repository
// root matches.
type Matcher interface {
	Match(path string) bool
}

// IgnoreSpec is a compiled set of gitignore-style patterns. It is immutable
// and safe for concurrent use.
type IgnoreSpec struct {
	patterns []string
	rules    []ignoreRule
}

type ignoreRule struct {
	glob    string
	negate  bool
	dirOnly bool
}

// NewIgnoreSpec compiles patterns. Blank lines and lines starting with "#"
// are ignored.
func NewIgnoreSpec(patterns ...string) *IgnoreSpec {
	s := new(IgnoreSpec)
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		s.patterns = append(s.patterns, p)
		s.rules = append(s.rules, compileRule(p))
	}
	return s
}

// compileRule translates one gitignore line into a doublestar pattern
// matched against the full relative path.
func compileRule(p string) ignoreRule {
	var r ignoreRule
	if rest, ok := strings.CutPrefix(p, "!"); ok {
		r.negate, p = true, rest
	}
	if rest, ok := strings.CutSuffix(p, "/"); ok {
		r.dirOnly, p = true, rest
	}
	// A slash at the start or in the middle anchors the pattern to the root.
	// Otherwise it matches at any depth.
	if rest, ok := strings.CutPrefix(p, "/"); ok {
		p = rest
	} else if !strings.Contains(p, "/") {
		p = "**/" + p
	}
	r.glob = p
	return r
}

// LoadIgnoreSpec reads one pattern per line from the file name in root.
// A missing file yields an empty spec.
func LoadIgnoreSpec(root, name string) (*IgnoreSpec, error) {
	f, err := os.Open(filepath.Join(root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return NewIgnoreSpec(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return NewIgnoreSpec(lines...), nil
}

// Patterns returns the compiled patterns.
func (s *IgnoreSpec) Patterns() []string { return s.patterns }

// Match implements [Matcher]. Directory paths must carry a trailing slash
// for directory-only patterns to apply. A path inside an ignored directory
// is ignored too, and a later negated pattern cannot re-include it.
func (s *IgnoreSpec) Match(path string) bool {
	if len(s.rules) == 0 {
		return false
	}
	isDir := strings.HasSuffix(path, "/")
	path = strings.TrimSuffix(path, "/")
	for i := 0; i < len(path); {
		end := strings.IndexByte(path[i:], '/')
		if end < 0 {
			return s.matchOne(path, isDir)
		}
		if s.matchOne(path[:i+end], true) {
			return true
		}
		i += end + 1
	}
	return false
}

// matchOne applies the rules to a single path. The last matching rule wins.
func (s *IgnoreSpec) matchOne(path string, isDir bool) bool {
	var ignored bool
	for _, r := range s.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if ok, err := doublestar.Match(r.glob, path); err == nil && ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// TypeSpec matches files by extension at any depth.
type TypeSpec struct {
	patterns []string
}

// NewTypeSpec returns a spec matching any of exts, such as ".cpp".
func NewTypeSpec(exts ...string) TypeSpec {
	var ts TypeSpec
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		ts.patterns = append(ts.patterns, "**/*"+ext)
	}
	return ts
}

// Match implements [Matcher].
func (ts TypeSpec) Match(p string) bool {
	for _, pattern := range ts.patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// StagedLister lists files staged for the next commit.
type StagedLister interface {
	StagedFiles(ctx context.Context) ([]string, error)
}

// Select yields slash-separated paths relative to root that the scope
// selects and ignore does not match. The sequence stops after the first
// error. Each call performs a fresh selection.
func Select(ctx context.Context, repo StagedLister, root string, scope Scope, ignore Matcher) iter.Seq2[string, error] {
	switch scope {
	case Changed:
		return func(yield func(string, error) bool) {
			files, err := repo.StagedFiles(ctx)
			if err != nil {
				yield("", err)
				return
			}
			for _, f := range files {
				if ignore.Match(f) {
					continue
				}
				if !yield(f, nil) {
					return
				}
			}
		}
	case All:
		return func(yield func(string, error) bool) { walk(ctx, root, ignore, yield) }
	default:
		return func(yield func(string, error) bool) {
			yield("", fmt.Errorf("%w %v", ErrInvalidScope, scope))
		}
	}
}

// walk traverses root breadth-first.
func walk(ctx context.Context, root string, ignore Matcher, yield func(string, error) bool) {
	queue := []string{""}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil {
			yield("", err)
			return
		}
		for _, e := range entries {
			if e.Name() == MetadataDir {
				continue
			}
			rel := path.Join(dir, e.Name())
			if e.IsDir() {
				if !ignore.Match(rel + "/") {
					queue = append(queue, rel)
				}
				continue
			}
			if !e.Type().IsRegular() || ignore.Match(rel) {
				continue
			}
			if !yield(rel, nil) {
				return
			}
		}
	}
}
