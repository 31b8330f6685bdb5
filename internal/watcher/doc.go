// Package watcher turns edits of the repository file into mutation events.
//
// A FileWatcher observes the file with fsnotify, falling back to polling
// where fsnotify is unavailable (network mounts, some containers). On
// every change the Reloader parses the file, diffs it against the live
// repository and swaps the new snapshot in. The resulting events pass
// through a Debouncer that coalesces events for the same identity before
// they are handed to the indexing pipeline as one batch.
//
// Usage:
//
//	svc, err := watcher.NewService(path, repo, cache, pipe, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package watcher
