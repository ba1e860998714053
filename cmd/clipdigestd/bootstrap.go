package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"clipdigest/internal/config"
	"clipdigest/internal/daemon"
	"clipdigest/internal/logging"
)

func run() error {
	var (
		configPath string
		writeCfg   bool
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&writeCfg, "write-config", false, "write a sample config to the default location and exit")
	flag.Parse()

	if writeCfg {
		return writeSampleConfig()
	}

	cfg, resolvedPath, exists, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	if exists {
		logger.Info("configuration loaded", logging.String("path", resolvedPath))
	} else {
		logger.Warn("no config file found, using defaults", logging.String("looked_at", resolvedPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

func writeSampleConfig() error {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
