// Package metrics exposes Prometheus instrumentation for task submission,
// envelope staging and execution, and the polling monitor.
package metrics
