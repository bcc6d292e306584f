// Package logging provides structured, level-filtered logging for rigger,
// built on Go's standard slog package.
//
// All log entries carry a subsystem identifier for categorization
// (Translator, Accumulator, Workspace, Runner, Operations, ConfigLoader)
// alongside the level, message and optional error.
//
// Initialize once at startup:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Runner", "running command: %s", command)
//	logging.Warn("Workspace", "failed to remove workspace %s: %s", dir, err)
//	logging.Error("Operations", err, "playbook run failed")
//
// The package is safe for concurrent use; level filtering happens at the
// handler so filtered-out messages cost no allocation.
package logging
