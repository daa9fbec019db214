// Package fsutil provides the small set of filesystem helpers shared by the
// local cache and the envelope staging code.
package fsutil
