package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/alecthomas/kong"

	"github.com/yammerjp/gocovrun/internal/coverage"
	"github.com/yammerjp/gocovrun/internal/xmlresult"
)

// ErrHelp is returned by ParseCLI after the help text has been printed.
var ErrHelp = errors.New("help requested")

type CLI struct {
	Coverage  coverage.Options  `kong:"embed,prefix='cov-'"`
	XMLResult xmlresult.Options `kong:"embed"`
	LogLevel  string            `kong:"name='log-level',enum='debug,info,warn,error',default='warn',help='Diagnostic log level.'"`
	Command   []string          `kong:"arg,optional,name='command',help='Test command to run (default: go test ./...).'"`
}

func ParseCLI(args []string) (CLI, error) {
	return parse(args)
}

func parse(args []string, opts ...kong.Option) (CLI, error) {
	var cli CLI
	helped := false
	options := append([]kong.Option{
		kong.Name("gocovrun"),
		kong.Description("Run Go tests with coverage measurement and report the result"),
		kong.UsageOnError(),
		kong.Exit(func(int) { helped = true }), // Prevent os.Exit during testing
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Help(func(_ kong.HelpOptions, ctx *kong.Context) error {
			cli.PrintHelp(ctx.Stdout)
			return nil
		}),
		kong.ExplicitGroups([]kong.Group{
			{Key: "coverage", Title: "Coverage options"},
			{Key: "xmlresult", Title: "xmlresult plugin options"},
		}),
		kong.Vars{
			"version": "1.0.0",
		},
	}, opts...)

	parser, err := kong.New(&cli, options...)
	if err != nil {
		return cli, err
	}

	if _, err := parser.Parse(args); err != nil {
		return cli, err
	}
	if helped {
		return cli, ErrHelp
	}

	return cli, nil
}

func (c CLI) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `gocovrun - Run Go tests with coverage measurement and report the result

Usage:
  gocovrun [--cov-* options] [-- <command> [args...]]

Coverage options:
  --cov-show-missing=FLAG    Show line numbers of statements that were not executed.
  --cov-report=MODE          report (default), annotate or html.
  --cov-directory=DIR        Output directory for annotate and html (default: coverage).
  --cov-ignore-errors=FLAG   Ignore source files that cannot be read.
  --cov-omit=FILE            File of newline separated import-path prefixes to leave out.
  --cov-strict-omit          Fail when the omit file cannot be read.

xmlresult plugin options:
  --xmlresult=PATH           Path for a machine-readable XML result log.

Options:
  --log-level=LEVEL          debug, info, warn (default) or error.
  --help                     Show this help message.

Environment Variables (optional):
  GOCOVRUN_DATA_FILE     Where the coverage profile is saved (default: .coverprofile)
  GOCOVRUN_DB_HOST       MySQL host; enables coverage history
  GOCOVRUN_DB_PORT       MySQL port (default: 3306)
  GOCOVRUN_DB_USER       MySQL username
  GOCOVRUN_DB_PASSWORD   MySQL password
  GOCOVRUN_DB_DATABASE   MySQL database name

Behavior:
  - Runs the command (default: go test ./...) with -coverprofile and -count=1 added.
  - stdin/stdout/stderr are passed through. Signals (SIGINT, SIGTERM) are forwarded.
  - Saves the profile, then prints or writes the selected report.

Exit Codes:
   0-127   Exit code from the test command
   3       Internal error in gocovrun (e.g., coverage or MySQL failure)
   4       Usage error

Example:
  gocovrun --cov-show-missing=1 --cov-omit=.covomit -- go test -race ./...
`)
}
