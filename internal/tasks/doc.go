// Package tasks defines the durable task model and its SQLite-backed store.
// A task moves through pending, the four processing statuses, and ends
// completed or failed. Summaries accumulate per task across resummarizations.
package tasks
