package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"remote-module/config"
	"remote-module/logging"
	"remote-module/module"
	"remote-module/modules"
	"remote-module/registry"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "remote-module",
		Usage: "create modules on remote workers and call them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level",
			},
		},
		Commands: []*cli.Command{
			workerCommand(),
			forwardCommand(),
			modulesCommand(),
			constructorsCommand(),
		},
	}
}

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if cfg.Log.File == "" {
		cfg.Log.Output = c.App.ErrWriter
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// openRegistry opens the configured registry. When addr is set, dest is pinned
// to it in a static registry instead.
func (e *env) openRegistry(dest, addr string) (registry.Registry, func() error, error) {
	if addr != "" {
		return registry.NewStaticRegistry(registry.Instance{Name: dest, Addr: addr, Weight: 1}), func() error { return nil }, nil
	}
	return e.cfg.Registry.Open()
}

func catalog() (*module.Catalog, error) {
	c := module.NewCatalog()
	if err := modules.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
