// Package preflight checks that a project can be synchronized before any
// pass touches the index.
//
// The checks cover:
//   - free disk space under the data directory
//   - write access to the data directory
//   - the open file limit the watcher needs
//   - the repository file and its database name
//   - whether another process holds the data directory lock
//
// Use the Checker type to run all of them:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
