package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/yammerjp/gocovrun/internal/cli"
	"github.com/yammerjp/gocovrun/internal/config"
	"github.com/yammerjp/gocovrun/internal/coverage"
	"github.com/yammerjp/gocovrun/internal/executor"
	"github.com/yammerjp/gocovrun/internal/gocover"
	"github.com/yammerjp/gocovrun/internal/history"
	"github.com/yammerjp/gocovrun/internal/runner"
	"github.com/yammerjp/gocovrun/internal/terminal"
	"github.com/yammerjp/gocovrun/internal/xmlresult"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Parse CLI arguments
	cliArgs, err := cli.ParseCLI(args)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return runner.UsageError
	}

	level, err := logrus.ParseLevel(cliArgs.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return runner.UsageError
	}
	logrus.SetLevel(level)
	logrus.SetOutput(stderr)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return runner.InternalError
	}

	command := cliArgs.Command
	if len(command) == 0 {
		command = runner.DefaultCommand
	}

	ctx := context.Background()
	fsys := afero.NewOsFs()
	pluginOpts := []coverage.Option{
		coverage.WithFs(fsys),
		coverage.WithOmitPolicy(cliArgs.Coverage.OmitPolicy()),
	}

	if cfg.History != nil {
		store, err := history.NewStore(cfg.History.DSN())
		if err != nil {
			fmt.Fprintf(stderr, "Failed to connect to MySQL: %v\n", err)
			return runner.InternalError
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return runner.InternalError
		}
		pluginOpts = append(pluginOpts, coverage.WithHistory(store, history.SuiteKey(command)))
	}

	var engine *gocover.Engine
	detection := coverage.Detect(exec.LookPath, func(goBin string) *coverage.Plugin {
		engine = gocover.New(fsys,
			gocover.WithGoBinary(goBin),
			gocover.WithDataFile(cfg.DataFile),
		)
		return coverage.New(engine, pluginOpts...)
	})
	if detection.Enabled {
		defer engine.Close()
	} else {
		logrus.Warn("go toolchain not found, running tests without coverage")
	}

	xmlPlugin := xmlresult.New(xmlresult.WithFs(fsys))
	defer xmlPlugin.Close()

	runCfg := runner.NewConfig(command)
	cliArgs.Coverage.Apply(runCfg)
	cliArgs.XMLResult.Apply(runCfg)

	plugins := append(detection.Plugins(), xmlPlugin)
	r := runner.New(
		executor.New(executor.WithOutput(stdout, stderr)),
		terminal.New(stdout),
		plugins...,
	)
	exitCode, err := r.Run(ctx, runCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode
}
