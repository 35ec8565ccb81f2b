// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package clitest provides a table-driven harness for testing [cli.App]
// implementations.
package clitest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"go.astrophena.name/srcmaint/cli"
)

// Case describes a single invocation of an application.
type Case[T cli.App] struct {
	// Args are the command-line arguments.
	Args []string
	// Stdin is the standard input. Nil means empty input.
	Stdin io.Reader
	// Env holds environment variables visible to the application.
	Env map[string]string
	// Dir is the working directory passed to the application.
	Dir string

	// WantNothingPrinted requires both stdout and stderr to be empty.
	WantNothingPrinted bool
	// WantInStdout is a substring that must appear in stdout.
	WantInStdout string
	// WantInStderr is a substring that must appear in stderr.
	WantInStderr string
	// WantErr must match the returned error with errors.Is.
	WantErr error
	// WantErrType must match the returned error with errors.As.
	WantErrType error
	// CheckFunc runs after the application with the application value.
	CheckFunc func(*testing.T, T)
}

// Run runs each case as a subtest against a fresh application returned by
// setup.
func Run[T cli.App](t *testing.T, setup func(*testing.T) T, cases map[string]Case[T]) {
	t.Helper()

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			app := setup(t)

			stdin := tc.Stdin
			if stdin == nil {
				stdin = strings.NewReader("")
			}
			var stdout, stderr bytes.Buffer
			env := &cli.Env{
				Args:   tc.Args,
				Getenv: func(key string) string { return tc.Env[key] },
				Stdin:  stdin,
				Stdout: &stdout,
				Stderr: &stderr,
				Dir:    tc.Dir,
			}

			err := cli.Run(cli.WithEnv(context.Background(), env), app)

			switch {
			case tc.WantErr != nil:
				if !errors.Is(err, tc.WantErr) {
					t.Fatalf("want error %v, got %v", tc.WantErr, err)
				}
			case tc.WantErrType != nil:
				target := reflect.New(reflect.TypeOf(tc.WantErrType))
				if !errors.As(err, target.Interface()) {
					t.Fatalf("want error of type %T, got %v", tc.WantErrType, err)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v\nstderr:\n%s", err, stderr.String())
			}

			if tc.WantNothingPrinted && (stdout.Len() > 0 || stderr.Len() > 0) {
				t.Errorf("want nothing printed, got stdout %q, stderr %q", stdout.String(), stderr.String())
			}
			if tc.WantInStdout != "" && !strings.Contains(stdout.String(), tc.WantInStdout) {
				t.Errorf("stdout %q does not contain %q", stdout.String(), tc.WantInStdout)
			}
			if tc.WantInStderr != "" && !strings.Contains(stderr.String(), tc.WantInStderr) {
				t.Errorf("stderr %q does not contain %q", stderr.String(), tc.WantInStderr)
			}

			if tc.CheckFunc != nil {
				tc.CheckFunc(t, app)
			}
		})
	}
}
