// Package observability provides OpenTelemetry-based extensions for
// Symphony. MetricsExtension records run, step, and checkpoint
// counters plus duration histograms; TracingExtension opens one span
// per workflow run and annotates it with step events.
//
// Both use the globally registered providers by default, so without
// provider setup they are zero-overhead no-ops.
package observability
