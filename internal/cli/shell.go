package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dmitrijs2005/offsync/internal/engine"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/offline"
	"github.com/dmitrijs2005/offsync/internal/queue"
)

var errUsage = errors.New("usage")

// Agent is the part of offline.Agent the shell uses.
type Agent interface {
	EnqueueMutation(ctx context.Context, p queue.EnqueueParams) (string, error)
	ListPending(ctx context.Context) ([]*models.PendingMutation, error)
	TriggerDrain(ctx context.Context) (*engine.Report, error)
	WriteSnapshot(ctx context.Context, table string, data any) error
	ReadSnapshot(ctx context.Context, table string) (*models.CacheEntry, error)
	CreateOffline(ctx context.Context, r offline.CreateRequest) (string, string, error)
	ListShadowRecords(ctx context.Context, table string) ([]*models.ShadowRecord, error)
	Status(ctx context.Context) (models.Status, error)
}

// NetworkOverride lets the user force the network status.
type NetworkOverride interface {
	Set(reachable bool)
}

type Shell struct {
	agent Agent
	net   NetworkOverride
	kick  func()
	log   logging.Logger
}

// NewShell returns a shell over a. kick, if not nil, is called after every
// queued write so it is sent without waiting for the next scheduled drain.
func NewShell(a Agent, net NetworkOverride, kick func(), log logging.Logger) *Shell {
	return &Shell{agent: a, net: net, kick: kick, log: log}
}

func (s *Shell) queued() {
	if s.kick != nil {
		s.kick()
	}
}

// Run blocks until in is exhausted, the user exits or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) {
	printlnFn("offsync shell (type 'help' for commands)")
	runREPL(ctx, s, func() string { return s.prompt(ctx) }, bufio.NewScanner(in))
}

func (s *Shell) prompt(ctx context.Context) string {
	st, err := s.agent.Status(ctx)
	if err != nil {
		return "(status unavailable)"
	}
	mode := "offline"
	if st.IsOnline {
		mode = "online"
	}
	return fmt.Sprintf("(%s, %d pending)", mode, st.PendingCount)
}

func (s *Shell) Status(ctx context.Context, _ []string) error {
	st, err := s.agent.Status(ctx)
	if err != nil {
		return err
	}
	last := "never"
	if !st.LastSync.IsZero() {
		last = st.LastSync.Local().Format(time.DateTime)
	}
	printlnFn(fmt.Sprintf("online: %t, pending: %d, shadows: %d, last sync: %s",
		st.IsOnline, st.PendingCount, st.ShadowCount, last))
	return nil
}

func (s *Shell) Enqueue(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("%w: enqueue <method> <target> <table> <op> [json]", errUsage)
	}
	op, err := models.ParseOperation(args[3])
	if err != nil {
		return err
	}

	p := queue.EnqueueParams{
		Method:    strings.ToUpper(args[0]),
		Target:    args[1],
		Table:     args[2],
		Operation: op,
	}
	if len(args) > 4 {
		body := strings.Join(args[4:], " ")
		if !json.Valid([]byte(body)) {
			return fmt.Errorf("body is not valid JSON: %s", body)
		}
		p.Body = []byte(body)
		p.Headers = map[string]string{"Content-Type": "application/json"}
	}

	id, err := s.agent.EnqueueMutation(ctx, p)
	if err != nil {
		return err
	}
	printlnFn("queued", id)
	s.queued()
	return nil
}

func (s *Shell) List(ctx context.Context, _ []string) error {
	pending, err := s.agent.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		printlnFn("queue is empty")
		return nil
	}
	for _, m := range pending {
		line := fmt.Sprintf("%s  %-6s %-30s %-12s %-6s retries=%d", m.ID, m.Method, m.Target, m.Table, m.Operation, m.RetryCount)
		if m.LocalID != "" {
			line += " shadow=" + m.LocalID
		}
		printlnFn(line)
	}
	return nil
}

func (s *Shell) Drain(ctx context.Context, _ []string) error {
	r, err := s.agent.TriggerDrain(ctx)
	if r != nil {
		if r.Skipped != "" {
			printlnFn("drain skipped:", string(r.Skipped))
		} else {
			printlnFn(fmt.Sprintf("replayed %d, failed %d, abandoned %d, reconciled %d",
				r.Replayed, r.Failed, r.Abandoned, r.Reconciled))
		}
	}
	return err
}

func (s *Shell) Online(ctx context.Context, _ []string) error {
	s.log.Info(ctx, "network status overridden", "online", true)
	s.net.Set(true)
	return nil
}

func (s *Shell) Offline(ctx context.Context, _ []string) error {
	s.log.Info(ctx, "network status overridden", "online", false)
	s.net.Set(false)
	return nil
}

func (s *Shell) SnapshotPut(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: snapshot-put <table> <json>", errUsage)
	}
	raw := json.RawMessage(strings.Join(args[1:], " "))
	if !json.Valid(raw) {
		return fmt.Errorf("snapshot is not valid JSON: %s", raw)
	}
	if err := s.agent.WriteSnapshot(ctx, args[0], raw); err != nil {
		return err
	}
	printlnFn("snapshot of", args[0], "saved")
	return nil
}

func (s *Shell) SnapshotGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: snapshot-get <table>", errUsage)
	}
	e, err := s.agent.ReadSnapshot(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s (updated %s): %s", e.Table, e.LastUpdated.Local().Format(time.DateTime), e.Data))
	return nil
}

func (s *Shell) ShadowAdd(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: shadow-add <table> <target> <json>", errUsage)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.Join(args[2:], " ")), &payload); err != nil {
		return fmt.Errorf("payload must be a JSON object: %w", err)
	}

	localID, mutationID, err := s.agent.CreateOffline(ctx, offline.CreateRequest{
		Table:   args[0],
		Target:  args[1],
		Payload: payload,
	})
	if err != nil {
		return err
	}
	printlnFn("created", localID, "queued", mutationID)
	s.queued()
	return nil
}

func (s *Shell) Shadows(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: shadows <table>", errUsage)
	}
	records, err := s.agent.ListShadowRecords(ctx, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printlnFn("no shadow records in", args[0])
		return nil
	}
	for _, r := range records {
		b, err := json.Marshal(r.Payload)
		if err != nil {
			return err
		}
		printlnFn(r.ID, string(b))
	}
	return nil
}
