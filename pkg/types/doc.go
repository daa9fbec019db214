/*
Package types defines the core data structures shared across Tern.

This package contains the fundamental types of the executor's domain model:
task descriptions, task kinds and lifecycle states, result payloads, and the
well-known artifact names written to shared storage. All other packages build
on these definitions for submission, remote execution, and result parsing.
*/
package types
