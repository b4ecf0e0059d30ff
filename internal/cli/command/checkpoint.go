package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stillpoint/internal/cli/output"
	"github.com/yndnr/stillpoint/internal/config"
	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/storage"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
	"github.com/yndnr/stillpoint/internal/telemetry/logger"
)

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output format: table, json, yaml",
		Value:   string(output.FormatTable),
	}
}

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Decode every checkpoint store and print its header",
		Flags:  []cli.Flag{outputFlag()},
		Action: inspectAction,
	}
}

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:   "verify",
		Usage:  "Report the recovery decision run would make; exit 1 if it would refuse to start",
		Flags:  []cli.Flag{outputFlag()},
		Action: verifyAction,
	}
}

// ResetCommand returns the reset command.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Remove all checkpoints so the next run starts from zero",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "required; progress since the last checkpoint and before it is discarded",
			},
		},
		Action: resetAction,
	}
}

// openEngine loads the configuration and opens the checkpoint stores
// without a run ID. A read-only engine leaves the disk untouched.
func openEngine(c *cli.Context, readOnly bool) (*config.Config, *storage.Engine, error) {
	cfg, _, err := loadConfig(c, nil)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(config.ToLoggerConfig(cfg, errWriter(c)))
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	sc, err := config.ToStorageConfig(cfg, domain.RunID{}, log.Slog(), nil)
	if err != nil {
		return nil, nil, err
	}
	sc.ReadOnly = readOnly
	engine, err := storage.New(sc)
	if err != nil {
		return nil, nil, fmt.Errorf("open checkpoint stores: %w", err)
	}
	return cfg, engine, nil
}

// inspectRow is the table view of one checkpoint.Report.
type inspectRow struct {
	Store       string `json:"store"`
	Status      string `json:"status"`
	Counter     string `json:"counter"`
	PayloadSize string `json:"payload_size"`
	Algorithm   string `json:"algorithm"`
	Checksum    string `json:"checksum"`
	SavedAt     string `json:"saved_at"`
	RunID       string `json:"run_id"`
	RunStarted  string `json:"run_started"`
	Error       string `json:"error"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func reportRows(reports []checkpoint.Report) []inspectRow {
	rows := make([]inspectRow, 0, len(reports))
	for _, r := range reports {
		row := inspectRow{Store: r.Store}
		switch {
		case r.Error != "":
			row.Status = "corrupt"
			row.Error = r.Error
		case r.Absent:
			row.Status = "absent"
		default:
			row.Status = "ok"
			row.Counter = fmt.Sprintf("%d", r.Info.Counter)
			row.PayloadSize = fmt.Sprintf("%d", r.Info.PayloadSize)
			row.Algorithm = r.Info.Algorithm
			row.Checksum = shortHex(r.Info.Checksum)
			row.SavedAt = r.Info.SavedAt.UTC().Format(timeLayout)
			row.RunID = r.Info.RunID
			if id, err := domain.ParseRunID(r.Info.RunID); err == nil {
				row.RunStarted = id.Time().UTC().Format(timeLayout)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func shortHex(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}

func inspectAction(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return fatalf("%v", err)
	}
	_, engine, err := openEngine(c, true)
	if err != nil {
		return fatalf("%v", err)
	}
	defer engine.Close()

	reports := engine.Manager().Inspect(c.Context)

	var data any = reports
	if format == output.FormatTable {
		data = reportRows(reports)
	}
	if err := output.NewFormatter(format).Format(outWriter(c), data); err != nil {
		return fatalf("write output: %v", err)
	}

	for _, r := range reports {
		if r.Error != "" {
			return cli.Exit("", ExitFatal)
		}
	}
	return nil
}

// verifyResult is what verify prints.
type verifyResult struct {
	Path     string `json:"path" yaml:"path"`
	Decision string `json:"decision" yaml:"decision"`
	Counter  int64  `json:"counter" yaml:"counter"`
	Store    string `json:"store,omitempty" yaml:"store,omitempty"`
	Code     string `json:"code,omitempty" yaml:"code,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func verifyAction(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return fatalf("%v", err)
	}
	cfg, engine, err := openEngine(c, false)
	if err != nil {
		return fatalf("%v", err)
	}
	defer engine.Close()

	out := engine.Manager().Load(c.Context)
	res := verifyResult{
		Path:     cfg.Checkpoint.Path,
		Decision: out.Kind.String(),
	}
	switch {
	case out.Fatal():
		res.Code = domain.GetErrorCode(out.Err)
		res.Error = out.Err.Error()
	case out.Info != nil:
		res.Counter = out.Info.Counter
		res.Store = out.Info.Store
	}

	if err := output.NewFormatter(format).Format(outWriter(c), res); err != nil {
		return fatalf("write output: %v", err)
	}
	if out.Fatal() {
		return cli.Exit("", ExitFatal)
	}
	return nil
}

func resetAction(c *cli.Context) error {
	if !c.Bool("force") {
		return fatalf("reset discards all saved progress; pass --force to confirm")
	}
	cfg, engine, err := openEngine(c, false)
	if err != nil {
		return fatalf("%v", err)
	}
	defer engine.Close()

	if err := engine.Manager().Reset(c.Context); err != nil {
		return fatalf("reset: %v", err)
	}

	stores := []string{cfg.Checkpoint.Path}
	if fb := engine.Fallback(); fb != nil {
		stores = append(stores, fb.Dir())
	}
	fmt.Fprintf(outWriter(c), "removed checkpoint from %s\n", strings.Join(stores, ", "))
	return nil
}
