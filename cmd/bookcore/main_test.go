package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCFIParse(t *testing.T) {
	out, err := runCmd(t, "cfi", "parse", "epubcfi(/6/4!/4)")
	if err != nil {
		t.Fatalf("cfi parse error = %v", err)
	}
	var got cfiView
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q is not JSON: %v", out, err)
	}
	want := cfiView{Address: "epubcfi(/6/4!/4)", Paths: []string{"/6/4", "/4"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cfi parse = %+v, want %+v", got, want)
	}

	out, err = runCmd(t, "cfi", "parse", "epubcfi(/6/4!/2,/2,/4)")
	if err != nil {
		t.Fatalf("cfi parse range error = %v", err)
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil || !got.Range || len(got.Start) == 0 {
		t.Fatalf("cfi parse range = %+v, %v", got, err)
	}
}

func TestCFIParse_Malformed(t *testing.T) {
	_, err := runCmd(t, "cfi", "parse", "epubcfi(/4")
	if err == nil || !strings.Contains(err.Error(), "grammar parse error") {
		t.Fatalf("cfi parse error = %v, want grammar parse error", err)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xyz")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	out, err := runCmd(t, "parse", path)
	if err == nil {
		t.Fatal("parse expected error")
	}
	var res struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output %q is not JSON: %v", out, err)
	}
	if res.Success || res.Error.Code != "UNSUPPORTED_FORMAT" || res.Error.Message != "Unable to detect file format." {
		t.Fatalf("parse result = %+v", res)
	}
}

func TestUnknownFormatFlag(t *testing.T) {
	if _, err := runCmd(t, "--format", "djvu", "parse", "book.djvu"); err == nil {
		t.Fatal("expected error for unknown --format")
	}
}

func TestConfigCmd(t *testing.T) {
	out, err := runCmd(t, "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "max_memory_usage") {
		t.Fatalf("config output = %q", out)
	}
}
