// Package domain defines the screen-time types and the contracts between layers.
//
// Files are concept-oriented (screensession.go, summary.go, retention.go, errors.go).
// No implementation code beyond small pure helpers; interfaces live here so the
// app layer and the adapters never import each other.
package domain
