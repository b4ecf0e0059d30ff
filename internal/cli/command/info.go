package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stillpoint/internal/cli/output"
	"github.com/yndnr/stillpoint/internal/infra/buildinfo"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration after file, environment and flags",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: table, json, yaml",
				Value:   string(output.FormatYAML),
			},
		},
		Action: configAction,
	}
}

func configAction(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return fatalf("%v", err)
	}
	cfg, _, err := loadConfig(c, nil)
	if err != nil {
		return fatalf("%v", err)
	}
	if err := output.NewFormatter(format).Format(outWriter(c), cfg); err != nil {
		return fatalf("write output: %v", err)
	}
	return nil
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: table, json, yaml",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.IsSet("output") {
				_, err := fmt.Fprintf(outWriter(c), "stillpoint %s\n", buildinfo.String())
				return err
			}
			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return fatalf("%v", err)
			}
			return output.NewFormatter(format).Format(outWriter(c), buildinfo.Get())
		},
	}
}
