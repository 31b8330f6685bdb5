// Package logging sets up structured slog logging for contentsync.
//
// Logs are JSON lines written to a size-rotated file, by default
// ~/.contentsync/logs/sync.log, and optionally mirrored to stderr. The
// Viewer reads those files back for the logs command.
package logging
