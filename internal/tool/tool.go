// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package tool runs a repository maintenance pass over selected files.
package tool

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"go.astrophena.name/srcmaint/internal/fileset"
	"go.astrophena.name/srcmaint/internal/format"
	"go.astrophena.name/srcmaint/internal/header"
	"go.astrophena.name/srcmaint/logger"
)

// Tool names accepted by [New].
const (
	FileHeaderUpdate = "FileHeaderUpdate"
	FormatFile       = "FormatFile"
)

// Names lists the available tools.
var Names = []string{FileHeaderUpdate, FormatFile}

// ErrUnknownTool is returned by [New] and [IgnoreFile] for unknown names.
var ErrUnknownTool = errors.New("unknown tool")

// DefaultExtensions are the file extensions processed by default.
var DefaultExtensions = []string{".cpp", ".h"}

// IgnoreFile returns the name of the ignore file, in the repository root,
// read by the named tool.
func IgnoreFile(name string) (string, error) {
	switch name {
	case FileHeaderUpdate:
		return ".fileheaderignore", nil
	case FormatFile:
		return ".formatignore", nil
	default:
		return "", fmt.Errorf("%w %q: want one of %s", ErrUnknownTool, name, strings.Join(Names, ", "))
	}
}

// Task is a single file to process.
type Task struct {
	// Path is slash-separated and relative to the repository root.
	Path string
	// Flag is the tool-specific mode. For header updates it selects the
	// invoking user as the last editor; for formatting it restricts changes
	// to lines changed since the last commit.
	Flag bool
}

// Tool is a maintenance pass.
type Tool interface {
	// Select yields the tasks of one run. Each call selects afresh.
	Select(ctx context.Context) iter.Seq2[Task, error]
	// Process handles one task.
	Process(ctx context.Context, t Task) error
}

// Repository is the version control functionality tools need.
type Repository interface {
	fileset.StagedLister
	header.History
	format.Differ
	Stage(ctx context.Context, path string) error
}

// Config is the resolved configuration of a run.
type Config struct {
	// Root is the repository top-level directory.
	Root string
	// User is the identity of the invoking user.
	User string
	// Scope selects changed or all files.
	Scope fileset.Scope
	// Ignore excludes paths. Nil excludes nothing.
	Ignore *fileset.IgnoreSpec
	// Extensions limits processing to these extensions. Empty means
	// DefaultExtensions.
	Extensions []string
	// Stage re-stages every modified file.
	Stage bool

	// Template renders file headers. Nil means header.DefaultTemplate.
	Template *header.Template

	// DiffOnly restricts formatting to changed lines.
	DiffOnly bool
	// FormatCommand and FormatStyle configure clang-format.
	FormatCommand string
	FormatStyle   string
}

// New returns the named tool.
func New(name string, cfg Config, r Repository) (Tool, error) {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ignore := cfg.Ignore
	if ignore == nil {
		ignore = fileset.NewIgnoreSpec()
	}
	sel := selector{
		repo:   r,
		root:   cfg.Root,
		scope:  cfg.Scope,
		ignore: ignore,
		types:  fileset.NewTypeSpec(exts...),
	}

	switch name {
	case FileHeaderUpdate:
		w := &header.Writer{
			Root:     cfg.Root,
			User:     cfg.User,
			History:  r,
			Template: cfg.Template,
		}
		if cfg.Stage {
			w.Stager = r
		}
		return &HeaderUpdate{selector: sel, writer: w}, nil
	case FormatFile:
		f := &format.Formatter{
			Root:    cfg.Root,
			Command: cfg.FormatCommand,
			Style:   cfg.FormatStyle,
			Differ:  r,
		}
		if cfg.Stage {
			f.Stager = r
		}
		return &Format{selector: sel, formatter: f, diffOnly: cfg.DiffOnly}, nil
	default:
		_, err := IgnoreFile(name)
		return nil, err
	}
}

type selector struct {
	repo   fileset.StagedLister
	root   string
	scope  fileset.Scope
	ignore *fileset.IgnoreSpec
	types  fileset.TypeSpec
}

// tasks yields a task with the given flag for every selected path of a
// configured type.
func (s selector) tasks(ctx context.Context, flag bool) iter.Seq2[Task, error] {
	return func(yield func(Task, error) bool) {
		for path, err := range fileset.Select(ctx, s.repo, s.root, s.scope, s.ignore) {
			if err != nil {
				yield(Task{}, err)
				return
			}
			if !s.types.Match(path) {
				logger.Debug(ctx, "skipped", slog.String("file", path), slog.String("reason", "extension"))
				continue
			}
			if !yield(Task{Path: path, Flag: flag}, nil) {
				return
			}
		}
	}
}

// HeaderUpdate rewrites file headers.
type HeaderUpdate struct {
	selector
	writer *header.Writer
}

// Select implements [Tool]. Files staged for commit are treated as being
// edited now by the invoking user.
func (h *HeaderUpdate) Select(ctx context.Context) iter.Seq2[Task, error] {
	return h.tasks(ctx, h.scope == fileset.Changed)
}

// Process implements [Tool].
func (h *HeaderUpdate) Process(ctx context.Context, t Task) error {
	return h.writer.Write(ctx, t.Path, t.Flag)
}

// Format formats files with clang-format.
type Format struct {
	selector
	formatter *format.Formatter
	diffOnly  bool
}

// Select implements [Tool].
func (f *Format) Select(ctx context.Context) iter.Seq2[Task, error] {
	return f.tasks(ctx, f.diffOnly)
}

// Process implements [Tool].
func (f *Format) Process(ctx context.Context, t Task) error {
	return f.formatter.Format(ctx, t.Path, t.Flag)
}

// ErrInvalidWorkers is returned by [Exec] for a worker count below one.
var ErrInvalidWorkers = errors.New("worker count must be at least 1")

// FailedError is returned by [Exec] when some files could not be processed.
type FailedError struct {
	Total    int
	Failures map[string]error
}

func (e *FailedError) Error() string {
	paths := slices.Sorted(maps.Keys(e.Failures))
	return fmt.Sprintf("%d of %d files failed: %s", len(paths), e.Total, strings.Join(paths, ", "))
}

// Exec selects the tool's files and processes them with workers concurrent
// workers. Selection errors are returned as is; per-file failures are logged
// as they happen and reported together in a [*FailedError].
func Exec(ctx context.Context, t Tool, workers int) error {
	if workers < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkers, workers)
	}

	var selErr error
	tasks := func(yield func(Task) bool) {
		for task, err := range t.Select(ctx) {
			if err != nil {
				selErr = err
				return
			}
			if !yield(task) {
				return
			}
		}
	}
	report := Run(ctx, tasks, workers, t.Process)
	if selErr != nil {
		return selErr
	}
	if len(report.Failures) > 0 {
		return &FailedError{Total: report.Total, Failures: report.Failures}
	}
	logger.Info(ctx, "done", slog.Int("files", report.Total))
	return nil
}
