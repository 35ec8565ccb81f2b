// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"go.astrophena.name/srcmaint/logger"
)

const hookShellScript = `#!/bin/sh
echo "==> Updating file headers..."
exec srcmaint -tool FileHeaderUpdate -scope changed -stage
`

// installHook creates the pre-commit hook in the hooks directory dir unless
// one already exists.
func installHook(ctx context.Context, dir string) error {
	path := filepath.Join(dir, "pre-commit")

	if _, err := os.Stat(path); err == nil {
		logger.Warn(ctx, "pre-commit hook already exists, leaving it alone", slog.String("path", path))
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(hookShellScript), 0o755); err != nil {
		return err
	}
	logger.Info(ctx, "installed pre-commit hook", slog.String("path", path))
	return nil
}
