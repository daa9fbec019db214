/*
Package executor implements the submitter side of remote task execution.

The Executor wraps each task envelope in a single-job compute task adapter
whose placement is delegated to the cluster's load balancer, and hands it to
the compute grid. Each submitted task is owned by a TaskHandler: a one-way
state machine advanced by the polling Monitor, woken early by the cluster
future's completion callback. On completion the handler parses the result
into the task, records the transition in the ledger, and publishes a
lifecycle event.
*/
package executor
