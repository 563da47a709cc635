// Package cli assembles a program spec from command-line flags, runs it,
// and renders the result. It also hosts the interactive spec editor.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"procrun/internal/proc/env"
	"procrun/internal/proc/fdio"
	"procrun/internal/proc/program"
	apperr "procrun/pkg/errors"
)

const usageText = `Usage:
  run [ OPTIONS ] [ EXECUTABLE [ ARG ... ] ]

Options:
     --clear-env        Clear the environment.
  -h --help             Print usage and exit.
  -i --interactive      Edit the spec interactively.
     --keep-env VAR     Keep VAR in the environment.
     --no-print         Don't print the result.
     --no-run           Don't run the program.
  -o --output FILE      Write result to FILE.  Implies --no-print.
     --print            Print the result [default].
  -r --read FILE        Read program spec from FILE.
     --run              Run the program [default].
  -e --set-env VAR=VAL  Set VAR to VAL in the environment.
  -E --stderr SPEC      Handle stderr by SPEC [default: leave].
  -I --stdin SPEC       Handle stdin by SPEC [default: leave].
  -O --stdout SPEC      Handle stdout by SPEC [default: leave].
  -u --unset-env VAR    Unset VAR in the environment.
  -w --write FILE       Write program spec to FILE.  Implies --no-run.

Fd handler SPEC is one of: leave, null, close, capture, stdout, stderr,
dupN (N a descriptor number), or file:PATH[:MODE] with MODE one of
r, w, a, rw [default: rw].
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// Config is the parsed command line: the assembled spec plus the
// run/write/print disposition.
type Config struct {
	Spec        program.Spec
	Write       string
	Output      string
	Run         bool
	Print       bool
	Help        bool
	Interactive bool
	Options     program.Options
}

// Parse assembles a Config from the argument list. Flags are applied in
// order, so later flags override earlier ones.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		Spec:  program.DefaultSpec(),
		Run:   true,
		Print: true,
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	boolFlag := func(name string, apply func()) {
		fs.BoolFunc(name, "", func(string) error {
			apply()
			return nil
		})
	}
	stringFlag := func(long, short string, apply func(string) error) {
		fs.Func(long, "", apply)
		if short != "" {
			fs.Func(short, "", apply)
		}
	}

	boolFlag("clear-env", func() {
		cfg.Spec.Env.KeepAll = false
		cfg.Spec.Env.Keep = nil
	})
	boolFlag("help", func() { cfg.Help = true })
	boolFlag("h", func() { cfg.Help = true })
	boolFlag("interactive", func() { cfg.Interactive = true })
	boolFlag("i", func() { cfg.Interactive = true })
	boolFlag("print", func() { cfg.Print = true })
	boolFlag("no-print", func() { cfg.Print = false })
	boolFlag("run", func() { cfg.Run = true })
	boolFlag("no-run", func() { cfg.Run = false })

	stringFlag("keep-env", "", func(name string) error {
		KeepEnv(&cfg.Spec.Env, name)
		return nil
	})
	stringFlag("unset-env", "u", func(name string) error {
		UnsetEnv(&cfg.Spec.Env, name)
		return nil
	})
	stringFlag("set-env", "e", func(arg string) error {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return apperr.Usagef("bad --set-env option: %s", arg)
		}
		SetEnv(&cfg.Spec.Env, name, value)
		return nil
	})
	stringFlag("stdin", "I", func(arg string) error {
		spec, err := ParseHandlerSpec(arg)
		if err != nil {
			return err
		}
		cfg.Spec.Stdin = spec
		return nil
	})
	stringFlag("stdout", "O", func(arg string) error {
		spec, err := ParseHandlerSpec(arg)
		if err != nil {
			return err
		}
		cfg.Spec.Stdout = spec
		return nil
	})
	stringFlag("stderr", "E", func(arg string) error {
		spec, err := ParseHandlerSpec(arg)
		if err != nil {
			return err
		}
		cfg.Spec.Stderr = spec
		return nil
	})
	stringFlag("read", "r", func(arg string) error {
		spec, err := ReadSpecFile(arg)
		if err != nil {
			return err
		}
		cfg.Spec = spec
		return nil
	})
	stringFlag("write", "w", func(arg string) error {
		cfg.Write = arg
		cfg.Run = false
		return nil
	})
	stringFlag("output", "o", func(arg string) error {
		cfg.Output = arg
		cfg.Print = false
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return nil, apperr.Usage(err.Error())
	}

	if positional := fs.Args(); len(positional) > 0 {
		cfg.Spec.Executable = positional[0]
		cfg.Spec.Args = append([]string(nil), positional[1:]...)
	}
	return cfg, nil
}

// KeepEnv adds name to the keep set and drops it from set and unset, so
// the three stay disjoint.
func KeepEnv(spec *env.Spec, name string) {
	spec.Keep = removeAll(spec.Keep, name)
	spec.Keep = append(spec.Keep, name)
	delete(spec.Set, name)
	spec.Unset = removeAll(spec.Unset, name)
}

// UnsetEnv adds name to the unset set and drops it from keep and set.
func UnsetEnv(spec *env.Spec, name string) {
	spec.Keep = removeAll(spec.Keep, name)
	delete(spec.Set, name)
	spec.Unset = removeAll(spec.Unset, name)
	spec.Unset = append(spec.Unset, name)
}

// SetEnv assigns name in the set mapping and drops it from keep and
// unset. An empty value is a valid assignment.
func SetEnv(spec *env.Spec, name, value string) {
	spec.Keep = removeAll(spec.Keep, name)
	spec.Unset = removeAll(spec.Unset, name)
	if spec.Set == nil {
		spec.Set = make(map[string]string)
	}
	spec.Set[name] = value
}

func removeAll(names []string, name string) []string {
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	return kept
}

// ParseHandlerSpec parses the command-line fd handler grammar.
func ParseHandlerSpec(arg string) (fdio.HandlerSpec, error) {
	spec := fdio.DefaultSpec()
	switch arg {
	case "leave", "null", "close", "capture":
		spec.Kind = fdio.Kind(arg)
		return spec, nil
	case "stdout":
		spec.Kind = fdio.Dup
		spec.FromFd = 1
		return spec, nil
	case "stderr":
		spec.Kind = fdio.Dup
		spec.FromFd = 2
		return spec, nil
	}
	if rest, ok := strings.CutPrefix(arg, "dup"); ok {
		fd, err := strconv.Atoi(rest)
		if err != nil || fd < 0 {
			return spec, apperr.Usagef("invalid file descriptor: %s", arg)
		}
		spec.Kind = fdio.Dup
		spec.FromFd = fd
		return spec, nil
	}
	if rest, ok := strings.CutPrefix(arg, "file:"); ok {
		path := rest
		mode := fdio.ModeReadWrite
		if idx := strings.LastIndex(rest, ":"); idx >= 0 {
			if _, err := fdio.Mode(rest[idx+1:]).OpenFlags(); err == nil {
				path = rest[:idx]
				mode = fdio.Mode(rest[idx+1:])
			}
		}
		if path == "" {
			return spec, apperr.Usagef("invalid file handler: %s", arg)
		}
		spec.Kind = fdio.File
		spec.Filename = path
		spec.Mode = mode
		return spec, nil
	}
	return spec, apperr.Usagef("invalid fd handler: %s", arg)
}
