package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/runstate"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/schedule"
)

// shutdownTimeout bounds how long an interrupted command waits for the
// active run to unwind.
const shutdownTimeout = 30 * time.Second

// RunCmd runs one node or graph.
type RunCmd struct {
	Runnable string   `arg:"" help:"Node or graph name."`
	Targets  []string `short:"t" help:"Targets to calibrate. Default: the configured targets." env:"CALIBGRAPH_TARGETS"`
	Params   string   `short:"p" help:"Parameter file (.yaml, .yml or .json)." type:"existingfile"`
	JSON     bool     `help:"Print the final run state as JSON."`
}

func (c *RunCmd) Run(ctx context.Context, app *App) error {
	targets := c.Targets
	if len(targets) == 0 {
		targets = app.Settings.Targets
	}
	if len(targets) == 0 {
		return errors.New("no targets: pass --targets or set targets in the settings file")
	}

	var raw map[string]any
	if c.Params != "" {
		values, err := params.FromFile(c.Params)
		if err != nil {
			return err
		}
		raw = values.Raw()
	}

	if _, err := app.Tracker.SubmitByName(ctx, c.Runnable, targets, raw); err != nil {
		return fmt.Errorf("%w (%s)", err, runstate.Kind(err))
	}
	if err := waitOrStop(ctx, app.Tracker); err != nil {
		return err
	}
	app.telemetry.report(context.WithoutCancel(ctx))

	state := app.Tracker.Snapshot()
	if c.JSON {
		if err := printJSON(app, state); err != nil {
			return err
		}
	} else if err := printRun(app, state); err != nil {
		return err
	}
	if state.State == runstate.StateError {
		return fmt.Errorf("%s failed: %s", state.Runnable, state.Error.Message)
	}
	return nil
}

// waitOrStop waits for the active run. When ctx ends first the run is
// stopped and waited for.
func waitOrStop(ctx context.Context, tracker *runstate.Tracker) error {
	err := tracker.Wait(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if serr := tracker.Stop(); serr != nil && !errors.Is(serr, runstate.ErrNotRunning) {
		return serr
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return tracker.Wait(stopCtx)
}

// ScheduleCmd resubmits a graph on a cron expression.
type ScheduleCmd struct {
	Graph   string   `arg:"" optional:"" help:"Graph to run. Default: schedule.graph from the settings."`
	Cron    string   `help:"Cron expression or descriptor. Default: schedule.cron from the settings." env:"CALIBGRAPH_CRON"`
	Targets []string `short:"t" help:"Targets to calibrate. Default: the configured targets." env:"CALIBGRAPH_TARGETS"`
	Seconds bool     `help:"Accept a leading seconds field in the expression."`
	Now     bool     `help:"Also run once immediately."`
}

func (c *ScheduleCmd) Run(ctx context.Context, app *App) error {
	graph := c.Graph
	if graph == "" {
		graph = app.Settings.Schedule.Graph
	}
	spec := c.Cron
	if spec == "" {
		spec = app.Settings.Schedule.Cron
	}
	if graph == "" || spec == "" {
		return errors.New("schedule needs a graph and a cron expression")
	}
	targets := c.Targets
	if len(targets) == 0 {
		targets = app.Settings.Targets
	}

	opts := []schedule.Option{schedule.WithLogger(app.Logger)}
	if c.Seconds {
		opts = append(opts, schedule.WithSeconds())
	}
	scheduler := schedule.New(app.Tracker, opts...)
	job := schedule.Job{Graph: graph, Targets: targets}
	id, err := scheduler.Add(spec, job)
	if err != nil {
		return err
	}

	scheduler.Start()
	if next, ok := scheduler.Next(id); ok {
		app.Logger.Info("schedule started",
			"graph", graph,
			"cron", spec,
			"next", next.Format(time.RFC3339))
	}
	if c.Now {
		if _, err := scheduler.Trigger(ctx, job); err != nil {
			app.Logger.Warn("immediate run rejected", "error", err.Error())
		}
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		return err
	}
	if err := waitOrStop(ctx, app.Tracker); err != nil && !errors.Is(err, runstate.ErrNotRunning) {
		return err
	}
	app.telemetry.report(stopCtx)

	if state := app.Tracker.Snapshot(); state.State != runstate.StateIdle {
		return printRun(app, state)
	}
	return nil
}

// ListCmd prints the library.
type ListCmd struct{}

func (c *ListCmd) Run(app *App) error {
	lib := app.Catalog.Library
	w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "NODE\tDESCRIPTION\tSTEPS\tPARAMETERS")
	lib.EachNode(func(n calibgraph.Node) bool {
		var fields []string
		if declarer, ok := n.(params.Declarer); ok {
			for _, f := range declarer.Schema().Fields {
				fields = append(fields, fmt.Sprintf("%s=%v", f.Name, f.Default))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.Name(), n.Description(),
			orDash(strings.Join(app.Catalog.Steps(n.Name()), ",")),
			orDash(strings.Join(fields, " ")))
		return true
	})
	fmt.Fprintln(w)

	fmt.Fprintln(w, "GRAPH\tDESCRIPTION\tVERTICES\tEDGES")
	for _, name := range lib.Graphs() {
		g, err := lib.Graph(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", name, g.Description(),
			strings.Join(g.Vertices(), ","), len(g.Edges()))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// historyRow is the printable form of a calibgraph.HistoryItem.
type historyRow struct {
	ID         int64    `json:"id"`
	Vertex     string   `json:"vertex"`
	Graph      string   `json:"graph"`
	Attempt    int      `json:"attempt"`
	Status     string   `json:"status"`
	Successful []string `json:"successful,omitempty"`
	Failed     []string `json:"failed,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

func historyRows(items []calibgraph.HistoryItem) []historyRow {
	rows := make([]historyRow, len(items))
	for i, item := range items {
		row := historyRow{
			ID:         item.ID,
			Vertex:     item.Vertex,
			Graph:      item.Graph,
			Attempt:    item.Attempt,
			Status:     item.Status.String(),
			DurationMs: item.Duration().Milliseconds(),
		}
		for _, t := range item.Targets {
			if o, ok := item.Outcomes[t]; ok && o == calibgraph.OutcomeSuccessful {
				row.Successful = append(row.Successful, t)
			} else {
				row.Failed = append(row.Failed, t)
			}
		}
		if item.Err != nil {
			row.Error = item.Err.Error()
		}
		rows[i] = row
	}
	return rows
}

func printJSON(app *App, state runstate.RunState) error {
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		runstate.RunState
		History []historyRow `json:"history"`
	}{state, historyRows(app.Tracker.History())})
}

func printRun(app *App, state runstate.RunState) error {
	w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERTEX\tGRAPH\tATTEMPT\tSTATUS\tSUCCESSFUL\tFAILED\tDURATION")
	for _, row := range historyRows(app.Tracker.History()) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%dms\n",
			row.ID, row.Vertex, row.Graph, row.Attempt, row.Status,
			orDash(strings.Join(row.Successful, ",")),
			orDash(strings.Join(row.Failed, ",")),
			row.DurationMs)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "\n%s %s: %s in %s\n", state.RunnableKind, state.Runnable, state.State,
		state.Duration().Round(time.Millisecond))
	if state.Result != nil {
		fmt.Fprintf(app.out, "successful: %s\nfailed: %s\n",
			orDash(strings.Join(state.Result.Successful, ",")),
			orDash(strings.Join(state.Result.Failed, ",")))
	}
	if state.Error != nil {
		fmt.Fprintf(app.out, "error (%s): %s\n", state.Error.Kind, state.Error.Message)
	}
	return nil
}
