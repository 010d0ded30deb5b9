package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	calls []string
	args  map[string][]string
	fail  map[string]error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.fail[name]
}

func (f *fakeExec) Status(_ context.Context, a []string) error      { return f.record("status", a) }
func (f *fakeExec) Enqueue(_ context.Context, a []string) error     { return f.record("enqueue", a) }
func (f *fakeExec) List(_ context.Context, a []string) error        { return f.record("list", a) }
func (f *fakeExec) Drain(_ context.Context, a []string) error       { return f.record("drain", a) }
func (f *fakeExec) Online(_ context.Context, a []string) error      { return f.record("online", a) }
func (f *fakeExec) Offline(_ context.Context, a []string) error     { return f.record("offline", a) }
func (f *fakeExec) SnapshotPut(_ context.Context, a []string) error { return f.record("snapshot-put", a) }
func (f *fakeExec) SnapshotGet(_ context.Context, a []string) error { return f.record("snapshot-get", a) }
func (f *fakeExec) ShadowAdd(_ context.Context, a []string) error   { return f.record("shadow-add", a) }
func (f *fakeExec) Shadows(_ context.Context, a []string) error     { return f.record("shadows", a) }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"status",
		"",
		"enqueue POST /api/customers customers create {\"name\": \"Acme\"}",
		"list",
		"drain",
		"offline",
		"online",
		"snapshot-put customers []",
		"snapshot-get customers",
		"shadow-add customers /api/customers {}",
		"shadows customers",
		"foobar",
		"exit",
		"status",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(test)" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"status", "enqueue", "list", "drain", "offline", "online",
		"snapshot-put", "snapshot-get", "shadow-add", "shadows",
	}, exec.calls)
	assert.Equal(t, []string{"POST", "/api/customers", "customers", "create", `{"name":`, `"Acme"}`}, exec.args["enqueue"])

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Available commands:")
	assert.Contains(t, joined, "Unknown command: foobar")
	assert.Contains(t, joined, "Bye!")
	assert.Contains(t, joined, "offsync (test)> ")
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{fail: map[string]error{"drain": errors.New("database is locked")}}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("drain\nlist\n")))

	require.Equal(t, []string{"drain", "list"}, exec.calls)
	assert.Contains(t, strings.Join(*out, "\n"), "error: database is locked")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	captureOutput(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("status\n")))
	assert.Empty(t, exec.calls)
}
