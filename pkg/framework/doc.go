// Package framework provides the plumbing to run the long-lived tasks of
// a process: links, lines and bridges.
package framework
