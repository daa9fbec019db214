// Package events distributes task lifecycle events to subscribers through a
// buffered broker. The task handler publishes a transition event each time a
// task advances state.
package events
