package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

type inner struct {
	Path     string        `json:"path"`
	Interval int           `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
}

type outer struct {
	Checkpoint inner  `json:"checkpoint"`
	Secret     string `json:"secret" table:"-"`
	Enabled    bool
}

type row struct {
	Store   string    `json:"store"`
	Counter int64     `json:"counter"`
	SavedAt time.Time `json:"saved_at"`
	Hidden  string    `table:"-"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("json format should give a JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("yaml format should give a YAMLFormatter")
	}
	if _, ok := NewFormatter("anything").(*TableFormatter); !ok {
		t.Error("unknown format should fall back to a table")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, row{Store: "file", Counter: 20}); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["store"] != "file" || got["counter"] != float64(20) {
		t.Errorf("decoded = %v", got)
	}
}

func TestYAMLFormatter(t *testing.T) {
	data := map[string]any{"store": "badger", "counter": 30}

	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML %q: %v", buf.String(), err)
	}
	if got["store"] != "badger" || got["counter"] != 30 {
		t.Errorf("decoded = %v", got)
	}
}

func TestTableFormatter_Table(t *testing.T) {
	table := &Table{Headers: []string{"STORE", "STATUS"}}
	table.AddRow("file", "ok")
	table.AddRow("badger", "absent")

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, table); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "STORE") || !strings.Contains(lines[2], "absent") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestTableFormatter_NoHeaders(t *testing.T) {
	table := Table{Headers: []string{"A"}, Rows: [][]string{{"x"}}}

	var buf bytes.Buffer
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, table); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "x" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	saved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := []*row{
		{Store: "file", Counter: 10, SavedAt: saved, Hidden: "nope"},
		nil,
		{Store: "badger"},
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"STORE", "COUNTER", "SAVED_AT", "2026-01-02T03:04:05Z", "badger"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "nope") || strings.Contains(out, "HIDDEN") {
		t.Errorf("table:\"-\" field rendered:\n%s", out)
	}
	if strings.Count(out, "\n") != 3 {
		t.Errorf("nil elements should be skipped:\n%s", out)
	}
}

func TestTableFormatter_StructFlattens(t *testing.T) {
	data := &outer{
		Checkpoint: inner{Path: "/data/ckpt", Interval: 10, Timeout: 3 * time.Second},
		Secret:     "hunter2",
		Enabled:    true,
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"checkpoint.path", "/data/ckpt", "checkpoint.interval", "3s", "enabled", "true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("hidden field rendered")
	}
}

func TestTableFormatter_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, 42); err == nil {
		t.Error("expected error for a scalar")
	}
	if err := (&TableFormatter{}).Format(&buf, nil); err != nil {
		t.Errorf("nil should render nothing, got %v", err)
	}
}

func TestFormatValueAndSnakeCase(t *testing.T) {
	if got := toSnakeCase("PayloadSize"); got != "payload_size" {
		t.Errorf("toSnakeCase = %q", got)
	}
	if got := toSnakeCase("ID"); got != "i_d" {
		t.Errorf("toSnakeCase = %q", got)
	}

	var buf bytes.Buffer
	_ = (&TableFormatter{}).Format(&buf, []row{{}})
	if !strings.Contains(buf.String(), "-") {
		t.Errorf("zero values should render as '-':\n%s", buf.String())
	}
}
