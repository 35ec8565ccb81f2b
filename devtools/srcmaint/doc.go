// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Srcmaint keeps C++ sources in a Git repository tidy.

It runs one of two tools over the files of the repository that contains the
working directory:

  - FileHeaderUpdate replaces the leading comments of each file with a
    copyright header naming the file, its author and its last editor, taken
    from Git history.
  - FormatFile runs clang-format on each file in place.

With -scope changed only files staged for the next commit are processed, and
header updates record the invoking user as the last editor. With -scope all
every file of the working tree is processed. Files are filtered by extension
(.cpp and .h by default) and by gitignore-style patterns read from
.fileheaderignore or .formatignore in the repository root. Pass -stage to
stage every file that was modified.

Defaults can be changed in a .srcmaint.txtar file in the repository root.
This file is a txtar archive that can contain:

  - extensions.json: a JSON array of file extensions to process.
  - header.tmpl: a text/template for the header, executed with the fields
    .Years, .File, .Author, .Date, .LastAuthor and .LastDate.
  - clang-format.json: a JSON object with the "command" and "style" used to
    run clang-format.

Run with -install-hook once to create a .git/hooks/pre-commit script that
updates the headers of staged files on every commit.

Srcmaint exits with a non-zero status if any file could not be processed.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/srcmaint/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
