package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	err := Output(data, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	// Verify valid JSON
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}

	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	err := Output(data, OutputOptions{
		Format: FormatYAML,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "name: test") {
		t.Errorf("Output should contain 'name: test', got: %s", output)
	}
}

func TestOutput_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]string{"key": "value"}

	// Empty format should default to YAML
	err := Output(data, OutputOptions{
		Format: "",
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "key: value") {
		t.Errorf("Default format should be YAML, got: %s", output)
	}
}

func TestOutput_Raw_Bytes(t *testing.T) {
	var buf bytes.Buffer

	data := []byte("raw binary data")

	err := Output(data, OutputOptions{
		Format: FormatRaw,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	if buf.String() != "raw binary data" {
		t.Errorf("Output = %q, want %q", buf.String(), "raw binary data")
	}
}

func TestOutput_Raw_String(t *testing.T) {
	var buf bytes.Buffer

	data := "raw string data"

	err := Output(data, OutputOptions{
		Format: FormatRaw,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	if buf.String() != "raw string data" {
		t.Errorf("Output = %q, want %q", buf.String(), "raw string data")
	}
}

func TestOutput_Raw_Other(t *testing.T) {
	var buf bytes.Buffer

	// Non-string/bytes should fall back to YAML
	data := map[string]int{"count": 42}

	err := Output(data, OutputOptions{
		Format: FormatRaw,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	if !strings.Contains(buf.String(), "count: 42") {
		t.Errorf("Output should contain YAML, got: %s", buf.String())
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer

	err := Output("data", OutputOptions{
		Format: "invalid",
		Writer: &buf,
	})
	if err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "output.json")

	data := map[string]string{"key": "value"}

	err := Output(data, OutputOptions{
		Format: FormatJSON,
		File:   filePath,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	// Read and verify file
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(content, &result); err != nil {
		t.Fatalf("Invalid JSON in file: %v", err)
	}

	if result["key"] != "value" {
		t.Errorf("key = %q, want %q", result["key"], "value")
	}
}

func TestOutput_JSONIndent(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]string{"key": "value"}

	err := Output(data, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
		Indent: "    ", // 4 spaces
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	// Should contain indentation
	if !strings.Contains(buf.String(), "    ") {
		t.Errorf("Output should be indented, got: %s", buf.String())
	}
}

func TestOutputBytes(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "data.bin")

	data := []byte{0x00, 0x01, 0x02, 0x03}

	err := OutputBytes(data, filePath)
	if err != nil {
		t.Fatalf("OutputBytes error: %v", err)
	}

	// Read and verify
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}

	if !bytes.Equal(content, data) {
		t.Errorf("File content = %v, want %v", content, data)
	}
}

func TestOutputBytes_EmptyPath(t *testing.T) {
	err := OutputBytes([]byte{1, 2, 3}, "")
	if err == nil {
		t.Error("OutputBytes should fail for empty path")
	}
}

func capture(t *testing.T, f **os.File, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := *f
	*f = w
	fn()
	w.Close()
	*f = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestPrintHelpers(t *testing.T) {
	if got := capture(t, &os.Stdout, func() { PrintSuccess("Set %s = %d", "k", 1) }); got != "✓ Set k = 1\n" {
		t.Errorf("PrintSuccess = %q", got)
	}
	if got := capture(t, &os.Stderr, func() { PrintError("%v", "boom") }); got != "Error: boom\n" {
		t.Errorf("PrintError = %q", got)
	}
	if got := capture(t, &os.Stderr, func() { PrintVerbose(false, "hidden") }); got != "" {
		t.Errorf("PrintVerbose(false) = %q", got)
	}
}

func TestOutput_Query(t *testing.T) {
	type stat struct {
		Capacity int `json:"capacity"`
		Writes   int `json:"writes"`
	}
	var buf bytes.Buffer

	err := Output(stat{Capacity: 4096, Writes: 3}, OutputOptions{
		Format: FormatJSON,
		Query:  ".writes",
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "3" {
		t.Errorf("Output = %q, want 3", buf.String())
	}
}

func TestOutput_QueryRawString(t *testing.T) {
	var buf bytes.Buffer

	err := Output(map[string]any{"wait_mode": "latched"}, OutputOptions{
		Format: FormatRaw,
		Query:  ".wait_mode",
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if buf.String() != "latched" {
		t.Errorf("Output = %q, want %q", buf.String(), "latched")
	}
}

func TestQuery(t *testing.T) {
	in := []map[string]any{{"seq": 1}, {"seq": 2}}

	got, err := Query(in, ".[].seq")
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	list, ok := got.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("Query = %#v, want two results", got)
	}

	got, err = Query(in, "empty")
	if err != nil || got != nil {
		t.Errorf("Query(empty) = %#v, %v", got, err)
	}

	if _, err := Query(in, ".["); err == nil {
		t.Error("Query should fail for invalid expression")
	}
	if _, err := Query(in, ".seq"); err == nil {
		t.Error("Query should fail when indexing an array by name")
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer

	table := Table{
		Header: []string{"SEQ", "LEVEL", "TEXT"},
		Rows: [][]string{
			{"1", "INFO", "globalmem: init"},
			{"12", "WARN", "x"},
		},
	}
	err := Output(table, OutputOptions{
		Format: FormatTable,
		Writer: &buf,
		Styles: PlainStyles(),
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	want := "SEQ  LEVEL  TEXT\n" +
		"1    INFO   globalmem: init\n" +
		"12   WARN   x\n"
	if buf.String() != want {
		t.Errorf("Output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestOutput_TableUnsupported(t *testing.T) {
	var buf bytes.Buffer

	err := Output(map[string]int{"a": 1}, OutputOptions{
		Format: FormatTable,
		Writer: &buf,
	})
	if err == nil {
		t.Error("Output should fail for a result without a table form")
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"", "yaml", "JSON", " table ", "raw"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q) error: %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("ParseOutputFormat should fail for xml")
	}
}

func TestOutputFormat_Constants(t *testing.T) {
	// Verify format constants
	if FormatYAML != "yaml" {
		t.Errorf("FormatYAML = %q, want %q", FormatYAML, "yaml")
	}

	if FormatJSON != "json" {
		t.Errorf("FormatJSON = %q, want %q", FormatJSON, "json")
	}

	if FormatTable != "table" {
		t.Errorf("FormatTable = %q, want %q", FormatTable, "table")
	}

	if FormatRaw != "raw" {
		t.Errorf("FormatRaw = %q, want %q", FormatRaw, "raw")
	}
}
