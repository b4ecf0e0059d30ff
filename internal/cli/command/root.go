package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stillpoint/internal/config"
	"github.com/yndnr/stillpoint/internal/infra/buildinfo"
	"github.com/yndnr/stillpoint/internal/infra/confloader"
)

// Process exit codes.
const (
	ExitOK    = 0
	ExitFatal = 1
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "stillpoint",
		Usage:   "Run a counter-driven work loop that survives crashes",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RunCommand(),
			InspectCommand(),
			VerifyCommand(),
			ResetCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		HideVersion:    true,
		ExitErrHandler: exitErrHandler,
	}
}

// globalFlags returns the flags shared by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"STILLPOINT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "checkpoint file (overrides checkpoint.path)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides log.level)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "json or text (overrides log.format)",
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	ConfigFile string
	Path       string
	LogLevel   string
	LogFormat  string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		Path:       c.String("path"),
		LogLevel:   c.String("log-level"),
		LogFormat:  c.String("log-format"),
	}
}

// overrides maps set flags onto configuration keys.
func (f *GlobalFlags) overrides() map[string]any {
	o := map[string]any{}
	if f.Path != "" {
		o["checkpoint.path"] = f.Path
	}
	if f.LogLevel != "" {
		o["log.level"] = f.LogLevel
	}
	if f.LogFormat != "" {
		o["log.format"] = f.LogFormat
	}
	return o
}

// loadConfig loads the configuration with global flag overrides plus the
// given command-specific ones.
func loadConfig(c *cli.Context, extra map[string]any) (*config.Config, *confloader.Loader, error) {
	flags := ParseGlobalFlags(c)
	o := flags.overrides()
	for k, v := range extra {
		o[k] = v
	}

	cfg, loader, err := config.Load(config.LoadOptions{
		File:      flags.ConfigFile,
		Overrides: o,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, loader, nil
}

// exitErrHandler prints errors that are not already cli.ExitCoder values
// and exits 1. Exit coders are handled by urfave/cli itself.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	if _, ok := err.(cli.ExitCoder); ok {
		cli.HandleExitCoder(err)
		return
	}
	fmt.Fprintf(errWriter(c), "error: %v\n", err)
	cli.OsExiter(ExitFatal)
}

func errWriter(c *cli.Context) io.Writer {
	if c != nil && c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func outWriter(c *cli.Context) io.Writer {
	if c != nil && c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// fatalf returns an error that makes the process exit 1.
func fatalf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), ExitFatal)
}
