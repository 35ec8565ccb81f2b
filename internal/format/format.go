// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package format runs clang-format over repository files.
package format

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"go.astrophena.name/srcmaint/logger"
)

// Defaults for [Formatter].
const (
	DefaultCommand = "clang-format"
	DefaultStyle   = "Google"
)

// Error reports a failed formatter run or diff retrieval.
type Error struct {
	Path string
	// Output is the diagnostic output captured from the failed command.
	Output string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("formatting %s: %v", e.Path, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ":\n" + out
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Differ returns the zero-context diff of a file against the last commit.
type Differ interface {
	Diff(ctx context.Context, path string) ([]byte, error)
}

// Stager marks a file for the next commit.
type Stager interface {
	Stage(ctx context.Context, path string) error
}

// Formatter formats files below a repository root in place.
type Formatter struct {
	// Root is the repository top-level directory.
	Root string
	// Command is the clang-format executable. Empty means DefaultCommand.
	Command string
	// Style is passed as --style. Empty means DefaultStyle.
	Style string
	// Differ provides diffs for diff-only formatting.
	Differ Differ
	// Stager, if non-nil, stages every formatted file.
	Stager Stager
}

// Format formats the slash-separated path, relative to Root. When diffOnly
// is true, only lines changed since the last commit are formatted.
func (f *Formatter) Format(ctx context.Context, path string, diffOnly bool) error {
	abs := filepath.Join(f.Root, filepath.FromSlash(path))

	var ranges []string
	if diffOnly {
		d, err := f.Differ.Diff(ctx, path)
		if err != nil {
			return &Error{Path: path, Err: err}
		}
		ranges, err = LineRanges(d)
		if err != nil {
			return &Error{Path: path, Output: string(d), Err: err}
		}
		if len(ranges) == 0 {
			logger.Debug(ctx, "no changed lines", slog.String("file", path))
			return nil
		}
	}

	if out, err := f.run(ctx, abs, ranges); err != nil {
		return &Error{Path: path, Output: out, Err: err}
	}
	logger.Info(ctx, "formatted", slog.String("file", path), slog.Bool("diff_only", diffOnly))

	if f.Stager == nil {
		return nil
	}
	if err := f.Stager.Stage(ctx, path); err != nil {
		return err
	}
	logger.Info(ctx, "staged", slog.String("file", path))
	return nil
}

// run invokes the formatter and returns its combined output on failure.
func (f *Formatter) run(ctx context.Context, abs string, ranges []string) (string, error) {
	command, style := f.Command, f.Style
	if command == "" {
		command = DefaultCommand
	}
	if style == "" {
		style = DefaultStyle
	}

	args := []string{"-i", "--style=" + style}
	for _, r := range ranges {
		args = append(args, "--lines="+r)
	}
	args = append(args, abs)

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = f.Root
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.String(), err
	}
	return "", nil
}

// LineRanges returns the "start:end" line ranges, in the new version of the
// file, touched by a single-file unified diff. Pure deletions yield no range.
func LineRanges(d []byte) ([]string, error) {
	if len(bytes.TrimSpace(d)) == 0 {
		return nil, nil
	}
	fd, err := diff.ParseFileDiff(d)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	var ranges []string
	for _, h := range fd.Hunks {
		if h.NewLines == 0 {
			continue
		}
		ranges = append(ranges, fmt.Sprintf("%d:%d", h.NewStartLine, h.NewStartLine+h.NewLines-1))
	}
	return ranges, nil
}
