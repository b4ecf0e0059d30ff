package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// runApp runs the CLI with captured output and returns the exit code
// carried by the error, if any.
func runApp(t *testing.T, args ...string) (stdout string, code int) {
	t.Helper()
	stdout, _, code = runAppStderr(t, args...)
	return stdout, code
}

func runAppStderr(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"stillpoint"}, args...))
	if err != nil {
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			return out.String(), errOut.String(), ec.ExitCode()
		}
		t.Fatalf("app.Run(%v) error = %v\nstderr:\n%s", args, err, errOut.String())
	}
	return out.String(), errOut.String(), ExitOK
}

func verifyJSON(t *testing.T, path string) (verifyResult, int) {
	t.Helper()
	out, code := runApp(t, "--path", path, "verify", "-o", "json")
	var res verifyResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("verify output %q: %v", out, err)
	}
	return res, code
}

func TestApp_Commands(t *testing.T) {
	app := App()
	if app.Name != "stillpoint" {
		t.Errorf("Name = %q", app.Name)
	}

	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"run", "inspect", "verify", "reset", "config", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}

	flags := map[string]bool{}
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, want := range []string{"config", "path", "log-level", "log-format"} {
		if !flags[want] {
			t.Errorf("missing global flag %q", want)
		}
	}
}

func TestRun_ColdStartThenRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")

	if _, code := runApp(t, "--path", path, "run", "--pace", "0", "--units", "25"); code != ExitOK {
		t.Fatalf("run exit code = %d", code)
	}

	res, code := verifyJSON(t, path)
	if code != ExitOK {
		t.Fatalf("verify exit code = %d", code)
	}
	if res.Decision != "restored" || res.Counter != 25 {
		t.Errorf("verify = %+v, want restored at 25 from the final save", res)
	}

	if _, code := runApp(t, "--path", path, "run", "--pace", "0", "--units", "5", "--interval", "3"); code != ExitOK {
		t.Fatalf("second run exit code = %d", code)
	}
	if res, _ := verifyJSON(t, path); res.Counter != 30 {
		t.Errorf("counter after second run = %d, want 30", res.Counter)
	}
}

func TestRun_MetricsServerLogsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")
	t.Setenv("STILLPOINT_METRICS_ADDR", "127.0.0.1:0")

	_, stderr, code := runAppStderr(t, "--path", path, "run", "--pace", "0", "--units", "3", "--metrics")
	if code != ExitOK {
		t.Fatalf("run exit code = %d\n%s", code, stderr)
	}
	if n := strings.Count(stderr, "metrics server listening"); n != 1 {
		t.Errorf("listening logged %d times, want 1\n%s", n, stderr)
	}
	if !strings.Contains(stderr, `"run_id"`) {
		t.Errorf("log lines carry no run_id:\n%s", stderr)
	}
}

func TestRun_CorruptCheckpointExits1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")
	if err := os.WriteFile(path, []byte("SPCK but far too short"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, code := runApp(t, "--path", path, "run", "--pace", "0", "--units", "1"); code != ExitFatal {
		t.Errorf("run exit code = %d, want %d", code, ExitFatal)
	}

	res, code := verifyJSON(t, path)
	if code != ExitFatal || res.Decision != "fatal" || res.Code != "SP-CKPT-5004" {
		t.Errorf("verify = %+v code %d", res, code)
	}

	out, code := runApp(t, "--path", path, "inspect")
	if code != ExitFatal {
		t.Errorf("inspect exit code = %d, want %d", code, ExitFatal)
	}
	if !strings.Contains(out, "corrupt") {
		t.Errorf("inspect output:\n%s", out)
	}

	// The corrupt file is left for an operator.
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "SPCK but far too short" {
		t.Error("a fatal load must not touch the checkpoint file")
	}
}

func TestInspect_Formats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")

	out, code := runApp(t, "--path", path, "inspect")
	if code != ExitOK || !strings.Contains(out, "absent") {
		t.Errorf("inspect before first run: code %d\n%s", code, out)
	}

	runApp(t, "--path", path, "run", "--pace", "0", "--units", "10")

	out, code = runApp(t, "--path", path, "inspect", "-o", "yaml")
	if code != ExitOK {
		t.Fatalf("inspect exit code = %d", code)
	}
	var reports []map[string]any
	if err := yaml.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("inspect yaml %q: %v", out, err)
	}
	if len(reports) != 1 || reports[0]["store"] != "file" {
		t.Fatalf("reports = %v", reports)
	}
	info, _ := reports[0]["info"].(map[string]any)
	if info["counter"] != 10 || info["algorithm"] != "sha256" {
		t.Errorf("info = %v", info)
	}

	out, _ = runApp(t, "--path", path, "inspect")
	for _, want := range []string{"STORE", "STATUS", "RUN_STARTED", "ok", "10"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	if _, code := runApp(t, "--path", path, "inspect", "-o", "xml"); code != ExitFatal {
		t.Errorf("unknown format exit code = %d", code)
	}
}

func TestInspect_DoesNotCreateFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	path := filepath.Join(dir, "checkpoint.dat")
	t.Setenv("STILLPOINT_CHECKPOINT_FALLBACK_ENABLED", "true")

	out, code := runApp(t, "--path", path, "inspect", "-o", "json")
	if code != ExitOK {
		t.Fatalf("inspect exit code = %d\n%s", code, out)
	}
	var reports []map[string]any
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("inspect json %q: %v", out, err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %v, want file and badger", reports)
	}
	for _, r := range reports {
		if r["absent"] != true {
			t.Errorf("report %v, want absent", r)
		}
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("inspect created %s (stat err %v)", dir, err)
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")
	runApp(t, "--path", path, "run", "--pace", "0", "--units", "10")

	if _, code := runApp(t, "--path", path, "reset"); code != ExitFatal {
		t.Errorf("reset without --force: code %d", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("reset without --force removed the checkpoint")
	}

	out, code := runApp(t, "--path", path, "reset", "--force")
	if code != ExitOK || !strings.Contains(out, path) {
		t.Fatalf("reset: code %d\n%s", code, out)
	}
	if res, _ := verifyJSON(t, path); res.Decision != "cold_start" {
		t.Errorf("decision after reset = %q", res.Decision)
	}
}

func TestConfig_ShowsEffectiveValues(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "stillpoint.yaml")
	if err := os.WriteFile(file, []byte("checkpoint:\n  interval: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STILLPOINT_LOG_LEVEL", "debug")

	out, code := runApp(t, "--config", file, "--path", "/srv/state.dat", "config")
	if code != ExitOK {
		t.Fatalf("config exit code = %d", code)
	}
	var got map[string]map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("config yaml %q: %v", out, err)
	}
	if got["checkpoint"]["interval"] != 7 {
		t.Errorf("interval = %v, want 7 from file", got["checkpoint"]["interval"])
	}
	if got["checkpoint"]["path"] != "/srv/state.dat" {
		t.Errorf("path = %v, want flag value", got["checkpoint"]["path"])
	}
	if got["log"]["level"] != "debug" {
		t.Errorf("level = %v, want env value", got["log"]["level"])
	}
}

func TestConfig_InvalidExits1(t *testing.T) {
	t.Setenv("STILLPOINT_CHECKPOINT_INTERVAL", "0")
	if _, code := runApp(t, "config"); code != ExitFatal {
		t.Errorf("exit code = %d, want %d", code, ExitFatal)
	}
}

func TestVersion(t *testing.T) {
	out, code := runApp(t, "version")
	if code != ExitOK || !strings.HasPrefix(out, "stillpoint ") {
		t.Errorf("version: code %d output %q", code, out)
	}

	out, _ = runApp(t, "version", "-o", "json")
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version json %q: %v", out, err)
	}
	if info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}
