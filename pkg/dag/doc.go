// Package dag models the workflow graph the executor operates over and
// renders it in a dot-style directed-graph textual format.
package dag
