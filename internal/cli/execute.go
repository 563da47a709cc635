package cli

import (
	"io"
	"os"

	"procrun/internal/proc/program"
	apperr "procrun/pkg/errors"
)

// ReadSpecFile loads a spec document from a file, or from stdin for "-".
func ReadSpecFile(path string) (program.Spec, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return program.Spec{}, apperr.Wrapf(err, apperr.SystemFailure, "read %s: %v", path, err)
	}
	return program.FromDocument(data)
}

func writeFile(path string, data []byte) error {
	if path == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			return apperr.System("write", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperr.Wrapf(err, apperr.SystemFailure, "write %s: %v", path, err)
	}
	return nil
}

// Execute carries out a parsed command line: write the spec document if
// asked, then run the program and render its result.
func Execute(cfg *Config) error {
	if cfg.Write != "" {
		doc, err := cfg.Spec.Document()
		if err != nil {
			return err
		}
		if err := writeFile(cfg.Write, doc); err != nil {
			return err
		}
	}

	if !cfg.Run {
		return nil
	}

	prog, err := cfg.Spec.StartWith(cfg.Options)
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

	if cfg.Output != "" {
		doc, err := result.MarshalJSON()
		if err != nil {
			return apperr.Wrap(err, apperr.InternalError)
		}
		if err := writeFile(cfg.Output, append(doc, '\n')); err != nil {
			return err
		}
	}
	if cfg.Print {
		result.PrettyPrint(os.Stdout)
	}
	return nil
}
