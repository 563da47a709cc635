package program

import (
	"encoding/json"
	"strings"
	"testing"

	apperr "procrun/pkg/errors"
)

func TestResultGetSet(t *testing.T) {
	result := NewResult()
	result.Set(KeyStatus, "0")
	result.Set(KeyPid, "1234")

	status, err := result.Get(KeyStatus)
	if err != nil || status != "0" {
		t.Fatalf("get status = %q, %v", status, err)
	}
	if _, err := result.Get(KeyStdout); !apperr.Is(err, apperr.NameError) {
		t.Fatalf("missing key = %v, want NameError", err)
	}
	if result.Has(KeyStdout) {
		t.Fatalf("stdout should be absent")
	}
}

func TestResultJSON(t *testing.T) {
	result := NewResult()
	result.Set(KeyStatus, "0")
	result.Set(KeyStdout, "hello\n")

	doc, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var loaded Result
	if err := json.Unmarshal(doc, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if text, _ := loaded.Get(KeyStdout); text != "hello\n" {
		t.Fatalf("stdout = %q", text)
	}
}

func TestResultPrettyPrint(t *testing.T) {
	result := NewResult()
	result.Set(KeyStatus, "0")
	result.Set(KeyStdout, "line one\nline two\n")

	var buf strings.Builder
	result.PrettyPrint(&buf)
	text := buf.String()

	if !strings.Contains(text, "- status = 0\n") {
		t.Fatalf("missing single-line entry:\n%s", text)
	}
	if !strings.Contains(text, "line one\nline two\n") {
		t.Fatalf("missing multi-line value:\n%s", text)
	}
	if !strings.Contains(text, strings.Repeat("-", 80)) {
		t.Fatalf("missing closing rule:\n%s", text)
	}
}
