package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	plugci "github.com/plugci/plugci"
	"github.com/plugci/plugci/exitcodes"
	"github.com/plugci/plugci/flags"
	"github.com/plugci/plugci/service"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "plugci"
	app.Usage = "Plugin CI Pipeline Service"
	app.Description = "plugci builds, packages, end-to-end tests and publishes plugin artifacts"
	app.Flags = flags.Flags
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Run the full pipeline: build, package, test, report",
			Action: pipelineAction((*plugci.Pipeline).Run),
		},
		{
			Name:   "build",
			Usage:  "Run one build job (frontend, or backend with --backend)",
			Action: pipelineAction((*plugci.Pipeline).Build),
		},
		{
			Name:   "package",
			Usage:  "Merge build outputs and produce the package artifacts",
			Action: pipelineAction((*plugci.Pipeline).Package),
		},
		{
			Name:   "test",
			Usage:  "Run end-to-end tests against the live instance",
			Action: pipelineAction((*plugci.Pipeline).Test),
		},
		{
			Name:   "report",
			Usage:  "Assemble and publish the build report",
			Action: pipelineAction((*plugci.Pipeline).Report),
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if plugci.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start server
	ctx := context.Background()
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// pipelineAction builds the config and pipeline from the cli context and
// runs one pipeline entrypoint, mapping its errors to exit codes.
func pipelineAction(fn func(*plugci.Pipeline, context.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		logger := setupLogger(ctx.String(flags.LogLevel.Name))

		cfg, err := plugci.NewConfig(ctx, logger)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create config: %v", err), exitcodes.RuntimeErr)
		}
		pipeline, err := plugci.NewPipeline(cfg)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create pipeline: %v", err), exitcodes.RuntimeErr)
		}

		if err := fn(pipeline, ctx.Context); err != nil {
			if plugci.IsTestFailureError(err) {
				return cli.Exit(err.Error(), exitcodes.TestFailure)
			}
			return cli.Exit(err.Error(), exitcodes.RuntimeErr)
		}
		return nil
	}
}

func setupLogger(level string) log.Logger {
	lvl := log.LevelInfo
	switch level {
	case "trace":
		lvl = log.LevelTrace
	case "debug":
		lvl = log.LevelDebug
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	case "crit":
		lvl = log.LevelCrit
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true))
	log.SetDefault(logger)
	return logger
}
