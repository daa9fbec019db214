/*
Package compute defines the cluster compute facade the executor submits
through, and an in-process grid implementation of it.

The facade mirrors what a clustered compute layer provides: nodes, jobs,
futures with completion callbacks, map/reduce task adapters, and a pluggable
load balancer. The executor depends only on the interfaces; the Grid type
runs every job on a bounded per-node slot pool inside the current process,
which is how local mode and the test suite execute envelopes.
*/
package compute
