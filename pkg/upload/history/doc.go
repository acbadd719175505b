// Package history keeps a local SQLite record of files uploaded through the
// CLI and the last ingestion status observed for each.
//
// Terminal records older than the configured retention are removed by a
// Pruner, optionally on a cron schedule through a Scheduler.
package history
