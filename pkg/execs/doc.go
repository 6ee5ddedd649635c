// Package execs runs the external commands of rule scripts.
//
// An [Executor] runs one command line at a time with a hard timeout, either
// through the system shell or split into argv words. The environment of each
// command is built by an [Environment] that only passes through essential
// variables and those explicitly configured.
package execs
