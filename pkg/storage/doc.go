// Package storage persists the task ledger in an embedded BoltDB database.
// The executor records every observed lifecycle transition so terminal task
// states survive a submitter restart.
package storage
