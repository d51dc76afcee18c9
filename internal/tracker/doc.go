// Package tracker is the client side of screen-time capture.
//
// A Tracker turns activity and visibility events of one tab into session
// records in a Buffer. Tabs of the same origin run an Election over a shared
// Channel; only the leader's Syncer sends buffered records to the server.
// Any tab flushes its own buffer through a Beacon when it unloads.
package tracker
