// Package log configures the global zerolog logger and provides child-logger
// helpers scoped to a component, task, or session.
package log
