package main

import (
	"github.com/urfave/cli/v2"

	"remote-module/message"
)

func modulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "modules",
		Usage: "list the modules hosted by a worker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dest", Usage: "worker name", Required: true},
			&cli.StringFlag{Name: "addr", Usage: "worker address, bypassing the registry"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
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

			inst, err := rc.Resolve(c.Context, dest, "")
			if err != nil {
				return err
			}
			var reply message.ListReply
			if err := rc.Call(c.Context, inst.Addr, message.MethodList, &message.ListArgs{}, &reply); err != nil {
				return err
			}
			return printJSON(c.App.Writer, reply)
		},
	}
}

func constructorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "constructors",
		Usage: "list the constructors this build can create",
		Action: func(c *cli.Context) error {
			cat, err := catalog()
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, cat.Names())
		},
	}
}
