package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/samvad-hq/httpkit/internal/config"
	"github.com/samvad-hq/httpkit/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, errAbsent) {
			fmt.Fprintf(os.Stderr, "httpkit: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("httpkit starting", "args", args)

	root := newRootCmd(cfg, log)
	root.SetArgs(args)
	err = root.Execute()
	switch {
	case errors.Is(err, errAbsent):
		logger.WarnObj("request produced no response", "args", args)
	case err != nil:
		logger.ErrorObj("command failed", "error", err)
	}
	return err
}
