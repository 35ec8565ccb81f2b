// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.astrophena.name/srcmaint/cli"
	"go.astrophena.name/srcmaint/internal/fileset"
	"go.astrophena.name/srcmaint/internal/repo"
	"go.astrophena.name/srcmaint/internal/tool"
	"go.astrophena.name/srcmaint/logger"
)

func main() { cli.Main(new(app)) }

type app struct {
	tool        string
	scope       string
	stage       bool
	workers     int
	diff        bool
	ext         string
	verbose     bool
	installHook bool
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.tool, "tool", "", "Tool to run: "+strings.Join(tool.Names, " or ")+".")
	fs.StringVar(&a.scope, "scope", fileset.All.String(), "Files to process: changed or all.")
	fs.BoolVar(&a.stage, "stage", false, "Stage modified files for commit.")
	fs.IntVar(&a.workers, "workers", 4, "Number of files to process concurrently.")
	fs.BoolVar(&a.diff, "diff", false, "Format only lines changed since the last commit.")
	fs.StringVar(&a.ext, "ext", "", "Comma-separated list of file extensions to process.")
	fs.BoolVar(&a.verbose, "v", false, "Log skipped files.")
	fs.BoolVar(&a.installHook, "install-hook", false, "Install a pre-commit hook that updates headers of staged files.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) > 0 {
		return fmt.Errorf("%w: unexpected arguments %q", cli.ErrInvalidArgs, env.Args)
	}

	ctx = logger.Put(ctx, logger.NewConsole(env.Stderr, env.StderrIsTerminal()))
	if a.verbose {
		logger.LevelVar(ctx).Set(slog.LevelDebug)
	}

	if a.installHook {
		r, err := repo.Open(ctx, env.Dir)
		if err != nil {
			return err
		}
		dir, err := r.HooksDir(ctx)
		if err != nil {
			return err
		}
		return installHook(ctx, dir)
	}

	if a.tool == "" {
		return fmt.Errorf("%w: -tool is required", cli.ErrInvalidArgs)
	}
	ignoreFile, err := tool.IgnoreFile(a.tool)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, err)
	}
	scope, err := fileset.ParseScope(a.scope)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, err)
	}
	if a.workers < 1 {
		return fmt.Errorf("%w: %w, got %d", cli.ErrInvalidArgs, tool.ErrInvalidWorkers, a.workers)
	}

	r, err := repo.Open(ctx, env.Dir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(r.Dir())
	if err != nil {
		return err
	}

	var (
		user   string
		ignore *fileset.IgnoreSpec
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = r.User(gctx)
		return err
	})
	g.Go(func() (err error) {
		ignore, err = fileset.LoadIgnoreSpec(r.Dir(), ignoreFile)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	exts := cfg.extensions
	if a.ext != "" {
		exts = splitExtensions(a.ext)
	}

	t, err := tool.New(a.tool, tool.Config{
		Root:          r.Dir(),
		User:          user,
		Scope:         scope,
		Ignore:        ignore,
		Extensions:    exts,
		Stage:         a.stage,
		Template:      cfg.template,
		DiffOnly:      a.diff,
		FormatCommand: cfg.format.Command,
		FormatStyle:   cfg.format.Style,
	}, r)
	if err != nil {
		return err
	}
	return tool.Exec(ctx, t, a.workers)
}
