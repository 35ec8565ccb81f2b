// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package tool

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.astrophena.name/srcmaint/internal/fileset"
	"go.astrophena.name/srcmaint/internal/repo"
	"go.astrophena.name/srcmaint/internal/repo/repotest"
	"go.astrophena.name/srcmaint/testutil"
)

func TestIgnoreFile(t *testing.T) {
	for name, want := range map[string]string{
		FileHeaderUpdate: ".fileheaderignore",
		FormatFile:       ".formatignore",
	} {
		got, err := IgnoreFile(name)
		if err != nil {
			t.Fatalf("IgnoreFile(%q): %v", name, err)
		}
		testutil.AssertEqual(t, got, want)
	}
	if _, err := IgnoreFile("Lint"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("IgnoreFile(%q) = %v, want ErrUnknownTool", "Lint", err)
	}
}

func TestNewUnknownTool(t *testing.T) {
	_, err := New("Lint", Config{}, nil)
	testutil.AssertEqual(t, err, ErrUnknownTool)
}

// fakeTool selects a fixed list of paths, optionally failing after them, and
// fails to process the paths in fail.
type fakeTool struct {
	paths     []string
	selectErr error
	fail      map[string]bool
}

func (f *fakeTool) Select(ctx context.Context) iter.Seq2[Task, error] {
	return func(yield func(Task, error) bool) {
		for _, p := range f.paths {
			if !yield(Task{Path: p}, nil) {
				return
			}
		}
		if f.selectErr != nil {
			yield(Task{}, f.selectErr)
		}
	}
}

func (f *fakeTool) Process(ctx context.Context, t Task) error {
	if f.fail[t.Path] {
		return errBoom
	}
	return nil
}

func TestExec(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		err := Exec(t.Context(), &fakeTool{paths: []string{"a.cpp", "b.h"}}, 2)
		testutil.AssertEqual(t, err, nil)
	})

	t.Run("invalid workers", func(t *testing.T) {
		err := Exec(t.Context(), &fakeTool{paths: []string{"a.cpp"}}, 0)
		testutil.AssertEqual(t, err, ErrInvalidWorkers)
	})

	t.Run("failures", func(t *testing.T) {
		err := Exec(t.Context(), &fakeTool{
			paths: []string{"a.cpp", "b.h", "c.cpp"},
			fail:  map[string]bool{"c.cpp": true, "a.cpp": true},
		}, 2)
		var fe *FailedError
		if !errors.As(err, &fe) {
			t.Fatalf("Exec() = %v, want *FailedError", err)
		}
		testutil.AssertEqual(t, fe.Total, 3)
		testutil.AssertEqual(t, fe.Failures, map[string]error{"a.cpp": errBoom, "c.cpp": errBoom})
		testutil.AssertEqual(t, err.Error(), "2 of 3 files failed: a.cpp, c.cpp")
	})

	t.Run("selection error", func(t *testing.T) {
		selErr := errors.New("walk failed")
		err := Exec(t.Context(), &fakeTool{
			paths:     []string{"a.cpp"},
			selectErr: selErr,
			fail:      map[string]bool{"a.cpp": true},
		}, 1)
		testutil.AssertEqual(t, err, selErr)
	})
}

func openRepo(t *testing.T, r *repotest.Repo) *repo.Repo {
	t.Helper()
	rp, err := repo.Open(t.Context(), r.Dir)
	if err != nil {
		t.Fatalf("repo.Open(): %v", err)
	}
	return rp
}

var (
	alice     = "Alice"
	createdAt = time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
)

func TestHeaderUpdateAll(t *testing.T) {
	r := repotest.New(t)
	r.Write("src/a.cpp", "// old\nint a;\n")
	r.Write("src/b.h", "int b;\n")
	r.Write("notes.txt", "notes\n")
	r.Write("build/gen.cpp", "int gen;\n")
	r.Commit(alice, createdAt, ".")

	tl, err := New(FileHeaderUpdate, Config{
		Root:   r.Dir,
		User:   repotest.User,
		Scope:  fileset.All,
		Ignore: fileset.NewIgnoreSpec("build/"),
	}, openRepo(t, r))
	if err != nil {
		t.Fatal(err)
	}
	if err := Exec(t.Context(), tl, 4); err != nil {
		t.Fatalf("Exec(): %v", err)
	}

	for _, name := range []string{"src/a.cpp", "src/b.h"} {
		got := r.Read(name)
		for _, want := range []string{
			"@file: " + filepath.Base(name),
			"@author: Alice",
			"@last_author: Alice",
			"Copyright(c) 2022 ",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("%s does not contain %q:\n%s", name, want, got)
			}
		}
	}
	if got := r.Read("src/a.cpp"); strings.Contains(got, "// old") || !strings.HasSuffix(got, "*/\n\nint a;\n") {
		t.Errorf("old header not replaced:\n%s", got)
	}
	testutil.AssertEqual(t, r.Read("notes.txt"), "notes\n")
	testutil.AssertEqual(t, r.Read("build/gen.cpp"), "int gen;\n")

	// A second run leaves files unchanged.
	before := r.Read("src/a.cpp")
	if err := Exec(t.Context(), tl, 4); err != nil {
		t.Fatalf("Exec(): %v", err)
	}
	testutil.AssertEqual(t, r.Read("src/a.cpp"), before)
}

func TestHeaderUpdateChangedStages(t *testing.T) {
	r := repotest.New(t)
	r.Write("a.cpp", "int a;\n")
	r.Write("b.cpp", "int b;\n")
	r.Commit(alice, createdAt, ".")

	r.Write("a.cpp", "int a = 1;\n")
	r.Git("add", "a.cpp")

	tl, err := New(FileHeaderUpdate, Config{
		Root:  r.Dir,
		User:  repotest.User,
		Scope: fileset.Changed,
		Stage: true,
	}, openRepo(t, r))
	if err != nil {
		t.Fatal(err)
	}
	if err := Exec(t.Context(), tl, 2); err != nil {
		t.Fatalf("Exec(): %v", err)
	}

	got := r.Read("a.cpp")
	for _, want := range []string{"@author: Alice", "@last_author: " + repotest.User} {
		if !strings.Contains(got, want) {
			t.Errorf("a.cpp does not contain %q:\n%s", want, got)
		}
	}
	testutil.AssertEqual(t, r.Read("b.cpp"), "int b;\n")
	// Nothing is left unstaged.
	testutil.AssertEqual(t, r.Git("diff", "--name-only"), "")
}

func TestFormatFileDiffOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on Windows")
	}
	dir := t.TempDir()
	log := filepath.Join(dir, "args.log")
	command := filepath.Join(dir, "clang-format")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" >> '" + log + "'\n"
	if err := os.WriteFile(command, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	r := repotest.New(t)
	r.Write("a.cpp", "int a;\nint b;\nint c;\n")
	r.Write("b.cpp", "int b;\n")
	r.Commit(alice, createdAt, ".")
	r.Write("a.cpp", "int a;\nint  b;\nint c;\n")
	r.Git("add", "a.cpp", "b.cpp")

	tl, err := New(FormatFile, Config{
		Root:          r.Dir,
		Scope:         fileset.Changed,
		DiffOnly:      true,
		FormatCommand: command,
		FormatStyle:   "LLVM",
	}, openRepo(t, r))
	if err != nil {
		t.Fatal(err)
	}
	if err := Exec(t.Context(), tl, 2); err != nil {
		t.Fatalf("Exec(): %v", err)
	}

	b, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, strings.Split(strings.TrimSuffix(string(b), "\n"), "\n"), []string{
		"-i", "--style=LLVM", "--lines=2:2", filepath.Join(r.Dir, "a.cpp"),
	})
}
