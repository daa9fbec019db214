/*
Package remote implements the task envelope: the portable unit that packages
a task description on the submitter, ships it to a worker, and drives the
stage, execute, un-stage lifecycle there.

Two task bodies exist. A script task writes a launcher through its wrapper
builder, runs it in a subprocess rooted at the scratch directory, and yields
the exit status. An operator task rehydrates a named-operator invocation and
its delegate binding and runs the operator from the session registry. Both
share the envelope's staging (inputs symlinked through the local cache into a
fresh scratch directory) and un-staging (pattern-matched outputs copied to
the target directory, preserving relative paths).
*/
package remote
