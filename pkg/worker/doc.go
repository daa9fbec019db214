// Package worker wires a node's envelope-execution services together: the
// local cache, the session operator registry, and grid membership.
package worker
