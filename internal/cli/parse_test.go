package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"procrun/internal/proc/env"
	"procrun/internal/proc/fdio"
	apperr "procrun/pkg/errors"
)

func TestParseHandlerSpec(t *testing.T) {
	cases := []struct {
		arg  string
		want fdio.HandlerSpec
	}{
		{"leave", fdio.HandlerSpec{Kind: fdio.Leave}},
		{"null", fdio.HandlerSpec{Kind: fdio.Null}},
		{"close", fdio.HandlerSpec{Kind: fdio.Close}},
		{"capture", fdio.HandlerSpec{Kind: fdio.Capture}},
		{"stdout", fdio.HandlerSpec{Kind: fdio.Dup, FromFd: 1}},
		{"stderr", fdio.HandlerSpec{Kind: fdio.Dup, FromFd: 2}},
		{"dup7", fdio.HandlerSpec{Kind: fdio.Dup, FromFd: 7}},
		{"file:/tmp/out.txt:w", fdio.HandlerSpec{Kind: fdio.File, Filename: "/tmp/out.txt", Mode: fdio.ModeWrite}},
		{"file:/tmp/out.txt", fdio.HandlerSpec{Kind: fdio.File, Filename: "/tmp/out.txt", Mode: fdio.ModeReadWrite}},
	}
	for _, tt := range cases {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParseHandlerSpec(tt.arg)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Kind != tt.want.Kind {
				t.Fatalf("kind = %q, want %q", got.Kind, tt.want.Kind)
			}
			if got.Kind == fdio.Dup && got.FromFd != tt.want.FromFd {
				t.Fatalf("from_fd = %d, want %d", got.FromFd, tt.want.FromFd)
			}
			if got.Kind == fdio.File && (got.Filename != tt.want.Filename || got.Mode != tt.want.Mode) {
				t.Fatalf("file = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseHandlerSpecErrors(t *testing.T) {
	for _, arg := range []string{"bogus", "dup", "dupx", "dup-1", "file:"} {
		if _, err := ParseHandlerSpec(arg); !apperr.Is(err, apperr.UsageError) {
			t.Errorf("ParseHandlerSpec(%q) = %v, want UsageError", arg, err)
		}
	}
}

func TestParseEnvFlagInterplay(t *testing.T) {
	cfg, err := Parse([]string{
		"--keep-env", "A",
		"--keep-env", "B",
		"-e", "A=1",
		"-u", "B",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	spec := cfg.Spec.Env
	if len(spec.Keep) != 0 {
		t.Fatalf("keep = %v, want empty", spec.Keep)
	}
	if !reflect.DeepEqual(spec.Unset, []string{"B"}) {
		t.Fatalf("unset = %v", spec.Unset)
	}
	if !reflect.DeepEqual(spec.Set, map[string]string{"A": "1"}) {
		t.Fatalf("set = %v", spec.Set)
	}
}

func TestParseSetEnvEmptyValue(t *testing.T) {
	cfg, err := Parse([]string{"-e", "A="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if value, ok := cfg.Spec.Env.Set["A"]; !ok || value != "" {
		t.Fatalf("set = %v", cfg.Spec.Env.Set)
	}
}

func TestParseSetEnvWithoutEquals(t *testing.T) {
	if _, err := Parse([]string{"-e", "A"}); !apperr.Is(err, apperr.UsageError) {
		t.Fatalf("parse = %v, want UsageError", err)
	}
}

func TestParseClearEnvLeavesSetAndUnset(t *testing.T) {
	cfg, err := Parse([]string{
		"--keep-env", "A",
		"-e", "B=2",
		"-u", "C",
		"--clear-env",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	spec := cfg.Spec.Env
	if spec.KeepAll || len(spec.Keep) != 0 {
		t.Fatalf("keep = %v, keep_all = %v", spec.Keep, spec.KeepAll)
	}
	if !reflect.DeepEqual(spec.Set, map[string]string{"B": "2"}) {
		t.Fatalf("set = %v", spec.Set)
	}
	if !reflect.DeepEqual(spec.Unset, []string{"C"}) {
		t.Fatalf("unset = %v", spec.Unset)
	}
}

func TestParseWriteImpliesNoRun(t *testing.T) {
	cfg, err := Parse([]string{"-w", "spec.json"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Run {
		t.Fatalf("write should imply no-run")
	}

	cfg, err = Parse([]string{"-w", "spec.json", "--run"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.Run {
		t.Fatalf("later --run should win")
	}
}

func TestParseOutputImpliesNoPrint(t *testing.T) {
	cfg, err := Parse([]string{"-o", "result.json"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Print {
		t.Fatalf("output should imply no-print")
	}
}

func TestParsePositionals(t *testing.T) {
	cfg, err := Parse([]string{"-I", "null", "/bin/echo", "hello", "world"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Spec.Executable != "/bin/echo" {
		t.Fatalf("executable = %q", cfg.Spec.Executable)
	}
	if !reflect.DeepEqual(cfg.Spec.Args, []string{"hello", "world"}) {
		t.Fatalf("args = %v", cfg.Spec.Args)
	}
	if cfg.Spec.Stdin.Kind != fdio.Null {
		t.Fatalf("stdin = %+v", cfg.Spec.Stdin)
	}
}

func TestParseReadSpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")
	doc := `{
		"type": "ProcessProgram",
		"executable": "/bin/true",
		"args": ["x"],
		"stdout": "capture"
	}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	cfg, err := Parse([]string{"-r", path})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Spec.Executable != "/bin/true" {
		t.Fatalf("executable = %q", cfg.Spec.Executable)
	}
	if cfg.Spec.Stdout.Kind != fdio.Capture {
		t.Fatalf("stdout = %+v", cfg.Spec.Stdout)
	}
}

func TestEnvEditingDisjoint(t *testing.T) {
	spec := env.DefaultSpec()
	KeepEnv(&spec, "A")
	SetEnv(&spec, "A", "1")
	UnsetEnv(&spec, "A")

	if len(spec.Keep) != 0 || len(spec.Set) != 0 {
		t.Fatalf("keep/set should be empty: %+v", spec)
	}
	if !reflect.DeepEqual(spec.Unset, []string{"A"}) {
		t.Fatalf("unset = %v", spec.Unset)
	}

	KeepEnv(&spec, "A")
	if len(spec.Unset) != 0 {
		t.Fatalf("unset should be empty after keep: %v", spec.Unset)
	}
	if !reflect.DeepEqual(spec.Keep, []string{"A"}) {
		t.Fatalf("keep = %v", spec.Keep)
	}
}
