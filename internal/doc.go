// Package internal contains the core implementation packages for hotserve.
//
// # Package Organization
//
//   - config: config file decoding, defaults, validation and CLI overrides
//   - errors: the error taxonomy shared by every build stage
//   - templates: template discovery, compilation and rendering
//   - routes: route patterns, the compiled route table and its handlers
//   - snapshot: the immutable build result and the store that publishes it
//   - build: the staged build pipeline, outcomes, reporters and metrics
//   - watcher: filesystem watching, debouncing and the rebuild loop
//   - server: request dispatch, status pages, live reload and TLS serving
//   - logging: the structured logger and the console build reporter
//   - scaffolding: the starter site written when no config exists
//   - version: build information of the binary
//
// # Data Flow
//
// A build reads the config file and templates and produces a Snapshot. The
// build pipeline publishes it to a snapshot.Store, which the server reads
// once per request. The watcher asks the pipeline for a rebuild when a
// source changes; a failed rebuild leaves the published snapshot in place.
//
// Only two goroutine kinds touch shared state: request goroutines, which
// read the store, and the single reloader goroutine, which runs builds.
package internal
