package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs. Shell satisfies it;
// tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context, args []string) error
	Enqueue(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Drain(ctx context.Context, args []string) error
	Online(ctx context.Context, args []string) error
	Offline(ctx context.Context, args []string) error
	SnapshotPut(ctx context.Context, args []string) error
	SnapshotGet(ctx context.Context, args []string) error
	ShadowAdd(ctx context.Context, args []string) error
	Shadows(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  status                                  show connectivity, queue and shadow counts
  enqueue <method> <target> <table> <op> [json]
                                          queue a write (op: create|update|delete)
  list                                    list pending mutations, oldest first
  drain                                   replay the queue now
  online | offline                        override network status until the next probe
  snapshot-put <table> <json>             replace the cached snapshot of a table
  snapshot-get <table>                    show the cached snapshot of a table
  shadow-add <table> <target> <json>      create a record offline (shadow + queued create)
  shadows <table>                         list shadow records of a table
  help                                    show this help
  exit | quit                             leave the shell`

// runREPL reads commands line by line from scanner and dispatches them to a.
// The first token is the command, the rest are its arguments; a trailing
// JSON argument may contain spaces. The loop exits on scanner EOF, on
// "exit"/"quit" or when ctx is done.
//
// Command errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("offsync %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "status":
			err = a.Status(ctx, args)
		case "enqueue":
			err = a.Enqueue(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "drain", "sync":
			err = a.Drain(ctx, args)
		case "online":
			err = a.Online(ctx, args)
		case "offline":
			err = a.Offline(ctx, args)
		case "snapshot-put":
			err = a.SnapshotPut(ctx, args)
		case "snapshot-get":
			err = a.SnapshotGet(ctx, args)
		case "shadow-add":
			err = a.ShadowAdd(ctx, args)
		case "shadows":
			err = a.Shadows(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
