// Package history journals terminal render outcomes to a local SQLite
// database. The journal is append-only telemetry for the render history
// command; orchestrators never read runtime state back from it.
package history
