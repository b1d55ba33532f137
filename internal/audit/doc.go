// Package audit delivers dispatch audit events to a sink asynchronously.
//
// The dispatcher owns buffering only. Deciding which events to emit belongs to
// the root package.
package audit
