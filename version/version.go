// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package version reports build information embedded into the binary.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

// Info describes the running binary.
type Info struct {
	// Name is the command name.
	Name string
	// Version is the main module version, or "devel" for local builds.
	Version string
	// Commit is the VCS revision the binary was built from, if known.
	Commit string
	// Dirty reports whether the working tree had uncommitted changes.
	Dirty bool
	// Go is the Go toolchain version.
	Go string
}

// String formats the info as a single line terminated by a newline.
func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", i.Name, i.Version)
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(&sb, " (%s", commit)
		if i.Dirty {
			sb.WriteString(", dirty")
		}
		sb.WriteString(")")
	}
	fmt.Fprintf(&sb, " %s\n", i.Go)
	return sb.String()
}

// CmdName returns the base name of the running executable.
func CmdName() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return strings.TrimSuffix(filepath.Base(exe), ".exe")
}

// Version returns build information for the running binary.
func Version() Info {
	info := Info{
		Name:    CmdName(),
		Version: "devel",
		Go:      runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}
