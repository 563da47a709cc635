package program

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	apperr "procrun/pkg/errors"
)

// Well-known result keys.
const (
	KeyStatus        = "status"
	KeyPid           = "pid"
	KeyStdout        = "stdout"
	KeyStderr        = "stderr"
	KeyUserCPUTime   = "user_cpu_time"
	KeySystemCPUTime = "system_cpu_time"
	KeyMaxRSS        = "max_rss"
)

// Result maps result keys to stringified values.
type Result struct {
	values map[string]string
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{values: make(map[string]string)}
}

// Set assigns a value.
func (r *Result) Set(name, value string) {
	r.values[name] = value
}

// Get returns the value for name.
func (r *Result) Get(name string) (string, error) {
	value, ok := r.values[name]
	if !ok {
		return "", apperr.MissingName(name)
	}
	return value, nil
}

// Has reports whether name is present.
func (r *Result) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Keys returns all result keys in sorted order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.values))
	for key := range r.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON renders the flat key to value document.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}

// UnmarshalJSON loads the flat document form.
func (r *Result) UnmarshalJSON(data []byte) error {
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return apperr.Wrapf(err, apperr.FormatError, "result document: %v", err)
	}
	r.values = values
	return nil
}

// PrettyPrint writes a human-readable rendering. Multi-line values are
// set off with rules.
func (r *Result) PrettyPrint(w io.Writer) {
	fmt.Fprintf(w, "Result:\n")
	for _, key := range r.Keys() {
		value := r.values[key]
		if !strings.Contains(value, "\n") {
			fmt.Fprintf(w, "- %s = %s\n", key, value)
			continue
		}
		width := 77 - len(key)
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(w, "- %s %s\n", key, strings.Repeat("-", width))
		fmt.Fprint(w, value)
		if !strings.HasSuffix(value, "\n") {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, strings.Repeat("-", 80))
	}
}
