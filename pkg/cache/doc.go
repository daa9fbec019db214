/*
Package cache implements the worker-local scratch area and content cache.

Each worker process owns a single LocalCache. Input files are materialized
under it once per (session, source path) pair and shared between sibling
tasks through symbolic links, so identical inputs staged by parallel
envelopes occupy one on-disk copy. Scratch directories for envelope
executions are allocated under the same root. Close deletes that root when
the cache created it; a caller-provided root is left in place.
*/
package cache
