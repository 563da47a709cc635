// Package repl is the interactive spec editor: build a program spec a
// command at a time, inspect it, run it, and read or write spec
// documents.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"procrun/internal/cli"
	"procrun/internal/proc/program"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const helpText = `Commands:
  show                      Print the spec document.
  exec PATH [ARG ...]       Set the executable and arguments.
  env keep VAR              Keep VAR in the environment.
  env unset VAR             Unset VAR in the environment.
  env set VAR=VAL           Set VAR to VAL in the environment.
  env clear                 Clear the environment.
  stdin|stdout|stderr SPEC  Set an fd handler.
  read FILE                 Replace the spec from a document.
  write FILE                Write the spec document.
  run                       Run the spec and print the result.
  reset                     Restore the default spec.
  help                      Print this help.
  quit                      Leave the session.
`

var errQuit = errors.New("quit")

// Session holds the interactive editor state.
type Session struct {
	spec program.Spec
	opts program.Options
	rl   *readline.Instance
}

// New creates a session editing the given spec.
func New(spec program.Spec, opts program.Options) (*Session, error) {
	rl, err := readline.New("run> ")
	if err != nil {
		return nil, err
	}
	return &Session{spec: spec, opts: opts, rl: rl}, nil
}

// Run reads and executes commands until quit or end of input.
func (s *Session) Run() error {
	defer s.rl.Close()
	for {
		line, err := s.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		tokens, err := shlex.Split(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if err := s.dispatch(tokens); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *Session) dispatch(tokens []string) error {
	switch tokens[0] {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Print(helpText)
	case "show":
		doc, err := s.spec.Document()
		if err != nil {
			return err
		}
		_, _ = os.Stdout.Write(doc)
	case "reset":
		s.spec = program.DefaultSpec()
	case "exec":
		if len(tokens) < 2 {
			return fmt.Errorf("usage: exec PATH [ARG ...]")
		}
		s.spec.Executable = tokens[1]
		s.spec.Args = append([]string(nil), tokens[2:]...)
	case "env":
		return s.envCommand(tokens[1:])
	case "stdin", "stdout", "stderr":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: %s SPEC", tokens[0])
		}
		handler, err := cli.ParseHandlerSpec(tokens[1])
		if err != nil {
			return err
		}
		switch tokens[0] {
		case "stdin":
			s.spec.Stdin = handler
		case "stdout":
			s.spec.Stdout = handler
		case "stderr":
			s.spec.Stderr = handler
		}
	case "read":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: read FILE")
		}
		spec, err := cli.ReadSpecFile(tokens[1])
		if err != nil {
			return err
		}
		s.spec = spec
	case "write":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: write FILE")
		}
		doc, err := s.spec.Document()
		if err != nil {
			return err
		}
		if err := os.WriteFile(tokens[1], doc, 0644); err != nil {
			return err
		}
	case "run":
		return s.runSpec()
	default:
		return fmt.Errorf("unknown command %q; try help", tokens[0])
	}
	return nil
}

func (s *Session) envCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: env keep|unset|set|clear ...")
	}
	switch args[0] {
	case "clear":
		s.spec.Env.KeepAll = false
		s.spec.Env.Keep = nil
	case "keep":
		if len(args) != 2 {
			return fmt.Errorf("usage: env keep VAR")
		}
		cli.KeepEnv(&s.spec.Env, args[1])
	case "unset":
		if len(args) != 2 {
			return fmt.Errorf("usage: env unset VAR")
		}
		cli.UnsetEnv(&s.spec.Env, args[1])
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: env set VAR=VAL")
		}
		name, value, ok := strings.Cut(args[1], "=")
		if !ok || name == "" {
			return fmt.Errorf("usage: env set VAR=VAL")
		}
		cli.SetEnv(&s.spec.Env, name, value)
	default:
		return fmt.Errorf("unknown env command %q", args[0])
	}
	return nil
}

func (s *Session) runSpec() error {
	prog, err := s.spec.StartWith(s.opts)
	if err != nil {
		return err
	}
	defer prog.Close()
	if err := program.Wait(prog); err != nil {
		return err
	}
	result, err := prog.GetResult()
	if err != nil {
		return err
	}
	result.PrettyPrint(os.Stdout)
	return nil
}
