// Command calibgraph runs calibration workflows from the demo library
// against a simulated device, once or on a cron schedule.
//
//	calibgraph list
//	calibgraph run single_qubit_tuneup -t q1 -t q2
//	calibgraph schedule --cron "@every 1h" single_qubit_tuneup
//
// Settings come from --config (YAML or JSON). Flags fall back to
// CALIBGRAPH_* environment variables, which may be set in a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI is the command line of calibgraph.
type CLI struct {
	Config   string   `help:"Settings file (.yaml, .yml or .json)." type:"existingfile" env:"CALIBGRAPH_CONFIG"`
	LogLevel string   `help:"Override the configured log level (debug, info, warn, error)." env:"CALIBGRAPH_LOG_LEVEL"`
	Broken   []string `help:"Simulate qubits that never respond." env:"CALIBGRAPH_BROKEN"`

	Run      RunCmd      `cmd:"" help:"Run a node or graph once and print the result."`
	Schedule ScheduleCmd `cmd:"" help:"Run a graph on a cron schedule until interrupted."`
	List     ListCmd     `cmd:"" help:"List the nodes and graphs of the library."`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "calibgraph: load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "calibgraph: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command. Results go to stdout,
// logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("calibgraph"),
		kong.Description("Run calibration workflow graphs."),
		kong.UsageOnError(),
		kong.Writers(stdout, stdout),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	app, err := newApp(&cli, stdout, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil {
			app.Logger.Warn("shutdown failed", "error", cerr.Error())
		}
	}()

	return kctx.Run(app)
}
