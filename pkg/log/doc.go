// Package log defines the structured logging contract used across
// stereolink.
//
// The library itself never writes to stderr; every component accepts a
// Logger and defaults to the no-op implementation. Applications that want
// output inject an adapter, typically the zerolog one:
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//	enum := discovery.NewEnumerator(discovery.WithLogger(logger))
package log
