//go:build linux

package program

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"procrun/internal/proc/env"
	"procrun/internal/proc/fdio"
)

func buildHelper(t *testing.T) string {
	t.Helper()
	helper := filepath.Join(t.TempDir(), "run-init")
	cmd := exec.Command("go", "build", "-o", helper, "procrun/cmd/run-init")
	cmd.Env = os.Environ()
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build run-init helper: %v\n%s", err, out)
	}
	return helper
}

func runSpec(t *testing.T, spec Spec, helper string) *Result {
	t.Helper()
	prog, err := spec.StartWith(Options{HelperPath: helper, CaptureDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = prog.Close() })
	if err := Wait(prog); err != nil {
		t.Fatalf("wait: %v", err)
	}
	result, err := prog.GetResult()
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	return result
}

func mustGet(t *testing.T, result *Result, key string) string {
	t.Helper()
	value, err := result.Get(key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return value
}

func TestTrivialExit(t *testing.T) {
	helper := buildHelper(t)
	spec := Spec{
		Executable: "/bin/true",
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.Capture},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Capture},
	}
	result := runSpec(t, spec, helper)

	if status := mustGet(t, result, KeyStatus); status != "0" {
		t.Fatalf("status = %q", status)
	}
	if stdout := mustGet(t, result, KeyStdout); stdout != "" {
		t.Fatalf("stdout = %q", stdout)
	}
	if stderr := mustGet(t, result, KeyStderr); stderr != "" {
		t.Fatalf("stderr = %q", stderr)
	}
	if _, err := result.Get(KeyMaxRSS); err != nil {
		t.Fatalf("max_rss missing: %v", err)
	}
}

func TestEchoCapture(t *testing.T) {
	helper := buildHelper(t)
	spec := Spec{
		Executable: "/bin/echo",
		Args:       []string{"hello", "world"},
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.Capture},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Null},
	}
	result := runSpec(t, spec, helper)

	if stdout := mustGet(t, result, KeyStdout); stdout != "hello world\n" {
		t.Fatalf("stdout = %q", stdout)
	}
	if result.Has(KeyStderr) {
		t.Fatalf("stderr key should be absent")
	}
}

func TestStderrDupedToStdout(t *testing.T) {
	helper := buildHelper(t)
	spec := Spec{
		Executable: "/bin/sh",
		Args:       []string{"-c", "echo out; echo err 1>&2"},
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.Capture},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Dup, FromFd: 1},
	}
	result := runSpec(t, spec, helper)

	if stdout := mustGet(t, result, KeyStdout); stdout != "out\nerr\n" {
		t.Fatalf("stdout = %q", stdout)
	}
	if result.Has(KeyStderr) {
		t.Fatalf("stderr key should be absent")
	}
}

func TestChildEnvironment(t *testing.T) {
	t.Setenv("PR_TEST_A", "1")
	t.Setenv("PR_TEST_B", "2")
	t.Setenv("PR_TEST_C", "3")

	helper := buildHelper(t)
	spec := Spec{
		Executable: "/bin/sh",
		Args:       []string{"-c", `echo "A=$PR_TEST_A B=$PR_TEST_B C=$PR_TEST_C D=$PR_TEST_D"`},
		Env: env.Spec{
			Keep:  []string{"PR_TEST_A", "PR_TEST_B"},
			Unset: []string{"PR_TEST_B"},
			Set:   map[string]string{"PR_TEST_D": "4", "PR_TEST_A": "z"},
		},
		Stdin:  fdio.HandlerSpec{Kind: fdio.Null},
		Stdout: fdio.HandlerSpec{Kind: fdio.Capture},
		Stderr: fdio.HandlerSpec{Kind: fdio.Null},
	}
	result := runSpec(t, spec, helper)

	if stdout := mustGet(t, result, KeyStdout); stdout != "A=z B= C= D=4\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestFileHandler(t *testing.T) {
	helper := buildHelper(t)
	out := filepath.Join(t.TempDir(), "out.txt")
	spec := Spec{
		Executable: "/bin/echo",
		Args:       []string{"to file"},
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.File, Filename: out, Mode: fdio.ModeWrite},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Null},
	}
	result := runSpec(t, spec, helper)

	if status := mustGet(t, result, KeyStatus); status != "0" {
		t.Fatalf("status = %q", status)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read out: %v", err)
	}
	if string(data) != "to file\n" {
		t.Fatalf("out = %q", data)
	}
}

func TestExecFailureStatus(t *testing.T) {
	helper := buildHelper(t)
	spec := Spec{
		Executable: "/no/such/executable",
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.Null},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Null},
	}
	result := runSpec(t, spec, helper)

	status, err := strconv.Atoi(mustGet(t, result, KeyStatus))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status == 0 {
		t.Fatalf("exec failure should yield non-zero status")
	}
}

func TestGetResultIdempotent(t *testing.T) {
	helper := buildHelper(t)
	spec := Spec{
		Executable: "/bin/echo",
		Args:       []string{"once"},
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.Capture},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Null},
	}
	prog, err := spec.StartWith(Options{HelperPath: helper, CaptureDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer prog.Close()
	if err := Wait(prog); err != nil {
		t.Fatalf("wait: %v", err)
	}

	first, err := prog.GetResult()
	if err != nil {
		t.Fatalf("first result: %v", err)
	}
	second, err := prog.GetResult()
	if err != nil {
		t.Fatalf("second result: %v", err)
	}
	for _, key := range first.Keys() {
		left := mustGet(t, first, key)
		right := mustGet(t, second, key)
		if left != right {
			t.Fatalf("key %s changed between calls: %q vs %q", key, left, right)
		}
	}

	done, err := prog.IsDone()
	if err != nil || !done {
		t.Fatalf("is_done after reap = %v, %v", done, err)
	}
}

func TestIsDoneBeforeExit(t *testing.T) {
	helper := buildHelper(t)
	spec := Spec{
		Executable: "/bin/sleep",
		Args:       []string{"0.2"},
		Env:        env.DefaultSpec(),
		Stdin:      fdio.HandlerSpec{Kind: fdio.Null},
		Stdout:     fdio.HandlerSpec{Kind: fdio.Null},
		Stderr:     fdio.HandlerSpec{Kind: fdio.Null},
	}
	prog, err := spec.StartWith(Options{HelperPath: helper})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer prog.Close()

	done, err := prog.IsDone()
	if err != nil {
		t.Fatalf("is_done: %v", err)
	}
	if done {
		t.Fatalf("sleep child reported done immediately")
	}
	if err := Wait(prog); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if _, err := prog.GetResult(); err != nil {
		t.Fatalf("get result: %v", err)
	}
}
