package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/workguild/internal/app"
	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/orchestrator"
)

type cli struct {
	app *kingpin.Application

	assign        *kingpin.CmdClause
	redistribute  *kingpin.CmdClause
	stats         *kingpin.CmdClause
	candidate     *kingpin.CmdClause
	alertsCheck   *kingpin.CmdClause
	alertsCleanup *kingpin.CmdClause

	taskID *string
	pretty *bool
}

func newCLI() *cli {
	c := &cli{app: kingpin.New("workguild", "Run task auto-assignment, redistribution and workload alerts once")}

	c.assign = c.app.Command("assign", "Assign every unassigned task to its best candidate")
	c.redistribute = c.app.Command("redistribute", "Move auto-assigned tasks away from overloaded users")
	c.stats = c.app.Command("stats", "Show unassigned task count and per-user workload")

	c.candidate = c.app.Command("candidate", "Show the best candidate for one task without assigning it")
	c.taskID = c.candidate.Arg("task-id", "Task ID").Required().String()

	alerts := c.app.Command("alerts", "Workload and delay alerts")
	c.alertsCheck = alerts.Command("check", "Raise workload and delay alerts")
	c.alertsCleanup = alerts.Command("cleanup", "Remove alerts older than the retention window")

	c.pretty = c.app.Flag("pretty", "Indent JSON output").Bool()
	return c
}

func main() {
	c := newCLI()
	command := kingpin.MustParse(c.app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	app.SetupLogger(env, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.run(ctx, env, command, os.Stdout); err != nil {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, env *config.Env, command string, w io.Writer) error {
	store, err := app.NewStorage(ctx, env.StorageEnv)
	if err != nil {
		return err
	}
	a, err := app.New(env, store)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.dispatch(ctx, a.Orchestrator, command, w)
}

// dispatch runs one parsed command and writes its result to w as JSON.
func (c *cli) dispatch(ctx context.Context, orch *orchestrator.Orchestrator, command string, w io.Writer) error {
	var (
		out any
		err error
	)
	switch command {
	case c.assign.FullCommand():
		out, err = orch.AssignAll(ctx)
	case c.redistribute.FullCommand():
		out, err = orch.Redistribute(ctx)
	case c.stats.FullCommand():
		out, err = orch.Stats(ctx)
	case c.candidate.FullCommand():
		out, err = orch.FindBestCandidate(ctx, *c.taskID)
	case c.alertsCheck.FullCommand():
		created, checkErr := orch.CheckAlerts(ctx)
		out, err = map[string]any{"created": len(created), "notifications": created}, checkErr
	case c.alertsCleanup.FullCommand():
		removed, cleanupErr := orch.CleanupAlerts(ctx)
		out, err = map[string]int{"removed": removed}, cleanupErr
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}
	return c.printJSON(w, out)
}

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if *c.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
