// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package tool

import (
	"context"
	"iter"
	"log/slog"
	"maps"

	"go.astrophena.name/srcmaint/logger"
	"go.astrophena.name/srcmaint/syncx"
)

// Report summarizes a pool run.
type Report struct {
	// Total is the number of tasks handled.
	Total int
	// Failures maps the path of each failed task to its error.
	Failures map[string]error
}

// Run calls handle for every task with at most workers calls in flight and
// returns once all of them have returned. A failing task does not stop the
// others. Tasks repeating an already submitted path are dropped.
func Run(ctx context.Context, tasks iter.Seq[Task], workers int, handle func(context.Context, Task) error) Report {
	var (
		lwg       = syncx.NewLimitedWaitGroup(max(workers, 1))
		submitted = make(map[string]bool)
		failures  syncx.Map[string, error]
		total     int
	)
	for task := range tasks {
		if submitted[task.Path] {
			logger.Debug(ctx, "skipped", slog.String("file", task.Path), slog.String("reason", "duplicate"))
			continue
		}
		submitted[task.Path] = true
		total++
		lwg.Go(func() {
			if err := handle(ctx, task); err != nil {
				logger.Error(ctx, "processing failed", slog.String("file", task.Path), logger.Err(err))
				failures.Store(task.Path, err)
			}
		})
	}
	lwg.Wait()

	return Report{Total: total, Failures: maps.Collect(failures.All())}
}
