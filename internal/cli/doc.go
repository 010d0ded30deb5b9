// Package cli implements the interactive offsync shell.
//
// The shell drives an offline.Agent: it can queue writes, create records
// while offline, inspect the queue and the local collections, force a drain
// and override the network status until the next reachability probe.
//
// See Shell and runREPL for details.
package cli
