// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package header rewrites the authorship comment at the top of source files.
package header

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"text/template"
	"time"

	"github.com/natefinch/atomic"

	"go.astrophena.name/srcmaint/internal/repo"
	"go.astrophena.name/srcmaint/logger"
)

// DateLayout is the layout of dates in a header.
const DateLayout = "2006-01-02 15:04:05"

// Metadata is the authorship information of one file.
type Metadata struct {
	CreatedBy  string
	CreatedAt  time.Time
	ModifiedBy string
	ModifiedAt time.Time
}

// CreatedYear returns the four-digit year of CreatedAt.
func (m Metadata) CreatedYear() string { return m.CreatedAt.Format("2006") }

// ModifiedYear returns the four-digit year of ModifiedAt.
func (m Metadata) ModifiedYear() string { return m.ModifiedAt.Format("2006") }

// Years returns the copyright year, or a "YYYY-YYYY" span when the file was
// last modified in a different year than it was created.
func (m Metadata) Years() string {
	if c, mod := m.CreatedYear(), m.ModifiedYear(); c != mod {
		return c + "-" + mod
	}
	return m.CreatedYear()
}

//go:embed default.tmpl
var defaultTemplate string

// Template renders headers. Templates see the fields Years, File, Author,
// Date, LastAuthor and LastDate.
type Template struct {
	t *template.Template
}

// DefaultTemplate is the built-in header template.
var DefaultTemplate = &Template{template.Must(template.New("header").Option("missingkey=error").Parse(defaultTemplate))}

// ParseTemplate parses a header template.
func ParseTemplate(src string) (*Template, error) {
	t, err := template.New("header").Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing header template: %w", err)
	}
	return &Template{t}, nil
}

type templateData struct {
	Years      string
	File       string
	Author     string
	Date       string
	LastAuthor string
	LastDate   string
}

// Render returns the header for the file with the given base name.
func (t *Template) Render(file string, md Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.t.Execute(&buf, templateData{
		Years:      md.Years(),
		File:       file,
		Author:     md.CreatedBy,
		Date:       md.CreatedAt.Format(DateLayout),
		LastAuthor: md.ModifiedBy,
		LastDate:   md.ModifiedAt.Format(DateLayout),
	}); err != nil {
		return nil, fmt.Errorf("rendering header: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteError reports a failure to read or replace a file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("writing header to %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// History looks up the version history of a file.
type History interface {
	Created(ctx context.Context, path string) (repo.Entry, bool, error)
	LastModified(ctx context.Context, path string) (repo.Entry, bool, error)
}

// Stager marks a file for the next commit.
type Stager interface {
	Stage(ctx context.Context, path string) error
}

// Writer rewrites file headers below a repository root. It is safe for
// concurrent use on distinct paths.
type Writer struct {
	// Root is the repository top-level directory.
	Root string
	// User is the identity of the invoking user.
	User string
	// History provides authorship metadata.
	History History
	// Stager, if non-nil, stages every rewritten file.
	Stager Stager
	// Template renders headers. Nil means DefaultTemplate.
	Template *Template
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Metadata resolves the authorship of path, relative to Root. When local is
// true the invoking user at the current time is treated as the last editor.
func (w *Writer) Metadata(ctx context.Context, path string, local bool) (Metadata, error) {
	now := w.now()
	md := Metadata{
		CreatedBy:  w.User,
		CreatedAt:  now,
		ModifiedBy: w.User,
		ModifiedAt: now,
	}

	created, ok, err := w.History.Created(ctx, path)
	if err != nil {
		return Metadata{}, err
	}
	if ok {
		md.CreatedAt = created.Time
		if created.Author != "" {
			md.CreatedBy = created.Author
		}
	}

	if local {
		return md, nil
	}
	modified, ok, err := w.History.LastModified(ctx, path)
	if err != nil {
		return Metadata{}, err
	}
	if ok {
		md.ModifiedAt = modified.Time
		if modified.Author != "" {
			md.ModifiedBy = modified.Author
		}
	}
	return md, nil
}

// Write replaces the leading comments of the slash-separated path, relative
// to Root, with a freshly rendered header.
func (w *Writer) Write(ctx context.Context, file string, local bool) error {
	abs := filepath.Join(w.Root, filepath.FromSlash(file))

	content, err := os.ReadFile(abs)
	if err != nil {
		return &WriteError{Path: file, Err: err}
	}

	md, err := w.Metadata(ctx, file, local)
	if err != nil {
		return err
	}

	tmpl := w.Template
	if tmpl == nil {
		tmpl = DefaultTemplate
	}
	hdr, err := tmpl.Render(path.Base(file), md)
	if err != nil {
		return err
	}

	if err := replace(abs, io.MultiReader(bytes.NewReader(hdr), bytes.NewReader(Strip(content)))); err != nil {
		return &WriteError{Path: file, Err: err}
	}
	logger.Info(ctx, "added header", slog.String("file", file))

	if w.Stager == nil {
		return nil
	}
	if err := w.Stager.Stage(ctx, file); err != nil {
		return err
	}
	logger.Info(ctx, "staged", slog.String("file", file))
	return nil
}

// replace atomically replaces the file at path with the content of r. The
// file is left untouched if r fails.
func replace(path string, r io.Reader) error { return atomic.WriteFile(path, r) }
