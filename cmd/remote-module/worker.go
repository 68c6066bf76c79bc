package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"remote-module/server"
	"remote-module/worker"
)

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "run a worker node",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "worker name callers address (worker.name)"},
			&cli.StringFlag{Name: "listen", Usage: "listen address (worker.listen)"},
			&cli.StringFlag{Name: "advertise", Usage: "address published in the registry (worker.advertise)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve /metrics on this address (worker.metrics_addr)"},
		},
		Action: runWorker,
	}
}

func runWorker(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	cfg := e.cfg.Worker
	overrideString(c, "name", &cfg.Name)
	overrideString(c, "listen", &cfg.Listen)
	overrideString(c, "advertise", &cfg.Advertise)
	overrideString(c, "metrics-addr", &cfg.MetricsAddr)

	reg, closeReg, err := e.cfg.Registry.Open()
	if err != nil {
		return err
	}
	defer closeReg()

	cat, err := catalog()
	if err != nil {
		return err
	}
	node, err := worker.NewNode(cfg, reg, cat, e.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := node.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-node.Done():
	}
	stopErr := node.Stop(context.WithoutCancel(ctx))
	if errors.Is(serveErr, server.ErrServerClosed) {
		serveErr = nil
	}
	return errors.Join(serveErr, stopErr)
}

func overrideString(c *cli.Context, flag string, dst *string) {
	if c.IsSet(flag) {
		*dst = c.String(flag)
	}
}
