// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package header

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"go.astrophena.name/srcmaint/internal/repo"
	"go.astrophena.name/srcmaint/internal/repo/repotest"
	"go.astrophena.name/srcmaint/testutil"
)

func TestStrip(t *testing.T) {
	testutil.Run(t, filepath.Join("testdata", "*.txtar"), func(t *testing.T, match string) {
		files := testutil.ReadTxtar(t, match)
		got := Strip(files["in"])
		testutil.AssertEqual(t, string(got), string(files["want"]))
	})
}

func TestStripIsIdempotent(t *testing.T) {
	testutil.Run(t, filepath.Join("testdata", "*.txtar"), func(t *testing.T, match string) {
		once := Strip(testutil.ReadTxtar(t, match)["in"])
		testutil.AssertEqual(t, string(Strip(once)), string(once))
	})
}

var (
	utc8    = time.FixedZone("", 8*60*60)
	created = time.Date(2021, 3, 4, 5, 6, 7, 0, utc8)
	edited  = time.Date(2024, 1, 2, 3, 4, 5, 0, utc8)
	now     = time.Date(2026, 10, 19, 12, 0, 0, 0, utc8)
)

func TestYears(t *testing.T) {
	cases := map[string]struct {
		created, modified time.Time
		want              string
	}{
		"same year": {
			created:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			modified: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			want:     "2023",
		},
		"span": {
			created:  time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
			modified: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			want:     "2021-2024",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			md := Metadata{CreatedAt: tc.created, ModifiedAt: tc.modified}
			testutil.AssertEqual(t, md.Years(), tc.want)

			hdr, err := DefaultTemplate.Render("a.cpp", md)
			testutil.AssertEqual(t, err, nil)
			if !strings.Contains(string(hdr), "Copyright(c) "+tc.want+" Hangzhou") {
				t.Errorf("header does not contain year %q:\n%s", tc.want, hdr)
			}
		})
	}
}

func TestRender(t *testing.T) {
	md := Metadata{CreatedBy: "Alice", CreatedAt: created, ModifiedBy: "Bob", ModifiedAt: edited}
	got, err := DefaultTemplate.Render("main.cpp", md)
	testutil.AssertEqual(t, err, nil)

	const want = `/*
 * @copyright Copyright(c) 2021-2024 Hangzhou Zhicun (Witmem) Technology Co., Ltd.
 * @file: main.cpp
 * @author: Alice
 * @date: 2021-03-04 05:06:07
 * @last_author: Bob
 * @last_edit_time: 2024-01-02 03:04:05
*/

`
	testutil.AssertEqual(t, string(got), want)
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("// (c) {{.Years}} {{.Author}}\n\n")
	testutil.AssertEqual(t, err, nil)
	got, err := tmpl.Render("a.h", Metadata{CreatedBy: "Alice", CreatedAt: created, ModifiedAt: created})
	testutil.AssertEqual(t, err, nil)
	testutil.AssertEqual(t, string(got), "// (c) 2021 Alice\n\n")

	if _, err := ParseTemplate("{{.Years"); err == nil {
		t.Fatal("want parse error")
	}
	tmpl, err = ParseTemplate("{{.Unknown}}")
	testutil.AssertEqual(t, err, nil)
	if _, err := tmpl.Render("a.h", Metadata{}); err == nil {
		t.Fatal("want execution error for unknown field")
	}
}

type fakeHistory struct {
	created, modified repo.Entry
	hasCreated        bool
	hasModified       bool
	err               error
}

func (h *fakeHistory) Created(context.Context, string) (repo.Entry, bool, error) {
	return h.created, h.hasCreated, h.err
}

func (h *fakeHistory) LastModified(context.Context, string) (repo.Entry, bool, error) {
	return h.modified, h.hasModified, h.err
}

type recordingStager struct {
	staged []string
	err    error
}

func (s *recordingStager) Stage(_ context.Context, path string) error {
	s.staged = append(s.staged, path)
	return s.err
}

func TestMetadata(t *testing.T) {
	full := &fakeHistory{
		created:     repo.Entry{Author: "Alice", Time: created},
		modified:    repo.Entry{Author: "Bob", Time: edited},
		hasCreated:  true,
		hasModified: true,
	}

	cases := map[string]struct {
		history *fakeHistory
		local   bool
		want    Metadata
	}{
		"history": {
			history: full,
			want:    Metadata{CreatedBy: "Alice", CreatedAt: created, ModifiedBy: "Bob", ModifiedAt: edited},
		},
		"local edit": {
			history: full,
			local:   true,
			want:    Metadata{CreatedBy: "Alice", CreatedAt: created, ModifiedBy: "Carol", ModifiedAt: now},
		},
		"no history": {
			history: &fakeHistory{},
			want:    Metadata{CreatedBy: "Carol", CreatedAt: now, ModifiedBy: "Carol", ModifiedAt: now},
		},
		"empty author": {
			history: &fakeHistory{
				created:     repo.Entry{Time: created},
				modified:    repo.Entry{Time: edited},
				hasCreated:  true,
				hasModified: true,
			},
			want: Metadata{CreatedBy: "Carol", CreatedAt: created, ModifiedBy: "Carol", ModifiedAt: edited},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := &Writer{User: "Carol", History: tc.history, Now: func() time.Time { return now }}
			got, err := w.Metadata(context.Background(), "a.cpp", tc.local)
			testutil.AssertEqual(t, err, nil)
			testutil.AssertEqual(t, got, tc.want)
		})
	}

	t.Run("query error", func(t *testing.T) {
		qe := &repo.QueryError{Args: []string{"log"}, Err: repo.ErrUnexpectedOutput}
		w := &Writer{User: "Carol", History: &fakeHistory{err: qe}}
		_, err := w.Metadata(context.Background(), "a.cpp", false)
		testutil.AssertEqual(t, err, repo.ErrUnexpectedOutput)
	})
}

func newWriter(t *testing.T, stager Stager) *Writer {
	t.Helper()
	return &Writer{
		Root: t.TempDir(),
		User: "Carol",
		History: &fakeHistory{
			created:     repo.Entry{Author: "Alice", Time: created},
			modified:    repo.Entry{Author: "Bob", Time: edited},
			hasCreated:  true,
			hasModified: true,
		},
		Stager: stager,
		Now:    func() time.Time { return now },
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	w := newWriter(t, nil)
	testutil.WriteFiles(t, w.Root, map[string]string{
		"src/a.cpp": "// stale header\n/* more\n * lines */\n\n#include \"a.h\"\n\nint a;\n",
	})
	path := filepath.Join(w.Root, "src", "a.cpp")

	if err := w.Write(context.Background(), "src/a.cpp", false); err != nil {
		t.Fatalf("first Write(): %v", err)
	}
	first, err := os.ReadFile(path)
	testutil.AssertEqual(t, err, nil)

	if err := w.Write(context.Background(), "src/a.cpp", false); err != nil {
		t.Fatalf("second Write(): %v", err)
	}
	second, err := os.ReadFile(path)
	testutil.AssertEqual(t, err, nil)

	testutil.AssertEqual(t, string(second), string(first))
	if !strings.HasSuffix(string(second), "*/\n\n#include \"a.h\"\n\nint a;\n") {
		t.Errorf("unexpected content:\n%s", second)
	}
	if !strings.Contains(string(second), " * @file: a.cpp\n") {
		t.Errorf("header does not name the file:\n%s", second)
	}
}

func TestWriteStages(t *testing.T) {
	stager := new(recordingStager)
	w := newWriter(t, stager)
	testutil.WriteFiles(t, w.Root, map[string]string{"a.h": "int a;\n"})

	if err := w.Write(context.Background(), "a.h", true); err != nil {
		t.Fatalf("Write(): %v", err)
	}
	testutil.AssertEqual(t, stager.staged, []string{"a.h"})

	errStage := errors.New("index locked")
	stager.err = errStage
	err := w.Write(context.Background(), "a.h", true)
	testutil.AssertEqual(t, err, errStage)
}

func TestWriteMissingFile(t *testing.T) {
	w := newWriter(t, nil)
	err := w.Write(context.Background(), "missing.cpp", false)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("want *WriteError, got %v", err)
	}
	testutil.AssertEqual(t, we.Path, "missing.cpp")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("WriteError does not unwrap to os.ErrNotExist: %v", err)
	}
}

func TestReplaceLeavesOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cpp")
	const original = "int original;\n"
	if err := os.WriteFile(path, []byte(original), 0o600); err != nil {
		t.Fatal(err)
	}

	errBoom := errors.New("disk full")
	r := io.MultiReader(strings.NewReader("/* partial"), iotest.ErrReader(errBoom))
	if err := replace(path, r); err == nil {
		t.Fatal("replace() succeeded with a failing reader")
	}

	got, err := os.ReadFile(path)
	testutil.AssertEqual(t, err, nil)
	testutil.AssertEqual(t, string(got), original)

	entries, err := os.ReadDir(dir)
	testutil.AssertEqual(t, err, nil)
	testutil.AssertEqual(t, len(entries), 1)
}

func TestReplaceKeepsMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.h")
	if err := os.WriteFile(path, []byte("old\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := replace(path, bytes.NewReader([]byte("new\n"))); err != nil {
		t.Fatalf("replace(): %v", err)
	}
	info, err := os.Stat(path)
	testutil.AssertEqual(t, err, nil)
	testutil.AssertEqual(t, info.Mode().Perm(), os.FileMode(0o640))
}

func TestWriteWithRepository(t *testing.T) {
	tr := repotest.New(t)
	tr.Write("lib/util.h", "// old\n#pragma once\n")
	tr.Commit("Alice", created, "lib/util.h")
	tr.Write("lib/util.h", "// old\n#pragma once\nint f();\n")
	tr.Commit("Bob", edited, "lib/util.h")

	r, err := repo.Open(context.Background(), tr.Dir)
	testutil.AssertEqual(t, err, nil)

	w := &Writer{Root: r.Dir(), User: repotest.User, History: r, Stager: r, Now: func() time.Time { return now }}
	if err := w.Write(context.Background(), "lib/util.h", false); err != nil {
		t.Fatalf("Write(): %v", err)
	}

	const want = `/*
 * @copyright Copyright(c) 2021-2024 Hangzhou Zhicun (Witmem) Technology Co., Ltd.
 * @file: util.h
 * @author: Alice
 * @date: 2021-03-04 05:06:07
 * @last_author: Bob
 * @last_edit_time: 2024-01-02 03:04:05
*/

#pragma once
int f();
`
	testutil.AssertEqual(t, tr.Read("lib/util.h"), want)
	testutil.AssertEqual(t, tr.Git("diff", "--cached", "--name-only"), "lib/util.h\n")
}
