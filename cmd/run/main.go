package main

import (
	"fmt"
	"os"

	"procrun/internal/cli"
	"procrun/internal/cli/repl"
	"procrun/pkg/utils/logger"
)

func main() {
	if err := logger.Init(logger.Config{Level: logLevel()}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	if cfg.Help {
		cli.PrintUsage(os.Stdout)
		return
	}

	if cfg.Interactive {
		session, err := repl.New(cfg.Spec, cfg.Options)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if err := session.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cli.Execute(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func logLevel() string {
	if level := os.Getenv("RUN_LOG_LEVEL"); level != "" {
		return level
	}
	return "warn"
}
