// Package app provides the application service layer.
//
// Orchestrates the screen-time use cases: ingest, summary, retention and the
// scheduled purge. Sits between HTTP handlers and domain repositories and
// depends on domain interfaces, not concrete implementations.
package app
