package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"remote-module/module"
	"remote-module/remote"
)

func forwardCommand() *cli.Command {
	return &cli.Command{
		Name:  "forward",
		Usage: "create a module on a worker, call Forward once and print the result",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dest", Usage: "destination worker name", Required: true},
			&cli.StringFlag{Name: "addr", Usage: "worker address, bypassing the registry"},
			&cli.StringFlag{Name: "constructor", Usage: "registered constructor", Required: true},
			&cli.StringFlag{Name: "name", Usage: "module name, generated when empty"},
			&cli.StringFlag{Name: "init", Usage: "constructor positional arguments as a JSON array", Value: "[]"},
			&cli.StringFlag{Name: "init-kwargs", Usage: "constructor keyword arguments as a JSON object", Value: "{}"},
			&cli.StringFlag{Name: "args", Usage: "Forward positional arguments as a JSON array", Value: "[]"},
			&cli.StringFlag{Name: "kwargs", Usage: "Forward keyword arguments as a JSON object", Value: "{}"},
			&cli.BoolFlag{Name: "async", Usage: "use ForwardAsync and wait on the future"},
			&cli.BoolFlag{Name: "keep", Usage: "leave the module on the worker"},
		},
		Action: runForward,
	}
}

// parseInput builds an Input from a JSON array and a JSON object.
func parseInput(args, kwargs string) (*module.Input, error) {
	var pos []json.RawMessage
	if err := json.Unmarshal([]byte(args), &pos); err != nil {
		return nil, fmt.Errorf("positional arguments: %w", err)
	}
	var kw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(kwargs), &kw); err != nil {
		return nil, fmt.Errorf("keyword arguments: %w", err)
	}

	vals := make([]any, len(pos))
	for i, raw := range pos {
		vals[i] = raw
	}
	in := module.Args(vals...)
	for k, raw := range kw {
		in = in.Kw(k, raw)
	}
	return in, in.Err()
}

func runForward(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	initIn, err := parseInput(c.String("init"), c.String("init-kwargs"))
	if err != nil {
		return fmt.Errorf("--init: %w", err)
	}
	callIn, err := parseInput(c.String("args"), c.String("kwargs"))
	if err != nil {
		return fmt.Errorf("--args: %w", err)
	}

	dest := c.String("dest")
	reg, closeReg, err := e.openRegistry(dest, c.String("addr"))
	if err != nil {
		return err
	}
	defer closeReg()

	rc, err := e.cfg.Client.NewClient(reg, e.logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	cat, err := catalog()
	if err != nil {
		return err
	}

	ctx := c.Context
	if t := e.cfg.Client.CallTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	opts := []remote.Option{remote.WithCatalog(cat)}
	if n := c.String("name"); n != "" {
		opts = append(opts, remote.WithName(n))
	}
	h, err := remote.New(ctx, rc, dest, c.String("constructor"), initIn, opts...)
	if err != nil {
		return err
	}
	if !c.Bool("keep") {
		defer h.Close(context.WithoutCancel(ctx))
	}

	var out *module.Output
	if c.Bool("async") {
		out, err = h.ForwardAsync(ctx, callIn).WaitContext(ctx)
	} else {
		out, err = h.Forward(ctx, callIn)
	}
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, out.Raw())
}
