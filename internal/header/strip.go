// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package header

import (
	"bytes"
	"slices"
	"unicode"
)

var (
	lineComment = []byte("//")
	blockOpen   = []byte("/*")
	blockClose  = []byte("*/")
)

// Strip removes the comments and blank lines that precede the first line of
// code in content. Everything from that line on is returned unchanged,
// except that a line of code following the end of a block comment on the
// same line loses the comment and its leading whitespace.
func Strip(content []byte) []byte {
	var inBlock bool
	for rest := content; len(rest) > 0; {
		line, next := cutLine(rest)
		rest = next

		cur, partial := line, false
	scan:
		for {
			if inBlock {
				i := bytes.Index(cur, blockClose)
				if i < 0 {
					break scan
				}
				inBlock = false
				cur, partial = trimSpace(cur[i+len(blockClose):]), true
				continue
			}

			trimmed := trimSpace(cur)
			switch {
			case len(trimmed) == 0, bytes.HasPrefix(trimmed, lineComment):
				break scan
			case bytes.HasPrefix(trimmed, blockOpen):
				inBlock = true
				cur, partial = trimmed[len(blockOpen):], true
			default:
				if partial {
					return slices.Concat(trimmed, next)
				}
				return slices.Concat(line, next)
			}
		}
	}
	return []byte{}
}

// cutLine splits b after the first newline.
func cutLine(b []byte) (line, rest []byte) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i+1], b[i+1:]
	}
	return b, nil
}

func trimSpace(b []byte) []byte { return bytes.TrimLeftFunc(b, unicode.IsSpace) }
