// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/tools/txtar"

	"go.astrophena.name/srcmaint/internal/header"
)

const configFile = ".srcmaint.txtar"

type config struct {
	extensions []string
	template   *header.Template
	format     formatConfig
}

type formatConfig struct {
	Command string `json:"command"`
	Style   string `json:"style"`
}

// loadConfig reads the configuration archive from the repository root. A
// missing archive yields an empty configuration.
func loadConfig(root string) (*config, error) {
	cfg := new(config)

	ar, err := txtar.ParseFile(filepath.Join(root, configFile))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	for _, f := range ar.Files {
		var err error
		switch f.Name {
		case "extensions.json":
			err = json.Unmarshal(f.Data, &cfg.extensions)
		case "header.tmpl":
			cfg.template, err = header.ParseTemplate(string(f.Data))
		case "clang-format.json":
			err = json.Unmarshal(f.Data, &cfg.format)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", configFile, f.Name, err)
		}
	}
	return cfg, nil
}

// splitExtensions parses a comma-separated list of extensions.
func splitExtensions(s string) []string {
	var exts []string
	for ext := range strings.SplitSeq(s, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts
}
