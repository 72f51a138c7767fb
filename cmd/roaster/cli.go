package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	"github.com/GriffinCanCode/screen-roaster/internal/config"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
	"github.com/GriffinCanCode/screen-roaster/internal/grpcclient"
	"github.com/GriffinCanCode/screen-roaster/internal/logging"
	"github.com/GriffinCanCode/screen-roaster/internal/mcp"
	"github.com/GriffinCanCode/screen-roaster/internal/orchestrator"
)

// captureOutput is printed by the capture command.
type captureOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type listOutput struct {
	State string `json:"state"`
	Items any    `json:"items"`
}

type deleteOutput struct {
	Deleted string `json:"deleted"`
}

// newCLIApp creates the CLI application with all commands. JSON output
// goes to out.
func newCLIApp(out io.Writer) *cli.App {
	var cfg *config.Config
	app := &cli.App{
		Name:    "roaster",
		Usage:   "Capture screenshots and browse the gallery",
		Version: Version,
		Writer:  out,
		Before: func(c *cli.Context) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return outputError(apperrors.Wrap(err, apperrors.ConfigInvalid, "invalid configuration"))
			}
			if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
				return outputError(apperrors.Wrap(err, apperrors.ConfigInvalid, "invalid logging configuration"))
			}
			return nil
		},
	}
	conf := func() *config.Config { return cfg }
	app.Commands = []*cli.Command{
		serveCmd(conf),
		captureCmd(conf),
		listCmd(conf),
		deleteCmd(conf),
		openCmd(conf),
		shareCmd(conf),
		mcpCmd(conf),
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var remoteFlag = &cli.StringFlag{
	Name:    "remote",
	Aliases: []string{"r"},
	Usage:   "gRPC address of a running roaster server",
	EnvVars: []string{"ROASTER_REMOTE"},
}

func serveCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP, WebSocket and gRPC servers",
		Action: func(c *cli.Context) error {
			if err := serve(c.Context, conf()); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

func captureCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Take one screenshot",
		Flags: []cli.Flag{
			remoteFlag,
			&cli.StringFlag{Name: "token", Aliases: []string{"t"}, Usage: `Display token, e.g. "display:1"`},
			&cli.IntFlag{Name: "width", Usage: "Output width (0 = native)"},
			&cli.IntFlag{Name: "height", Usage: "Output height (0 = native)"},
		},
		Action: func(c *cli.Context) error {
			if c.Int("width") < 0 || c.Int("height") < 0 {
				return outputError(apperrors.New(apperrors.InvalidArgument, "width and height must not be negative"))
			}
			req := capture.Request{Token: c.String("token"), Width: c.Int("width"), Height: c.Int("height")}

			if addr := c.String("remote"); addr != "" {
				return withRemote(addr, func(client *grpcclient.Client) error {
					saved, err := client.Capture(c.Context, req)
					if err != nil {
						return err
					}
					return outputJSON(c, captureOutput{ID: saved.ID, Name: saved.Name, Path: saved.Path})
				})
			}

			return withLocal(c.Context, conf(), func(o *orchestrator.Orchestrator) error {
				if req.Token == "" {
					req.Token = o.DefaultRequest().Token
				}
				res, err := o.Capture(c.Context, req)
				if err != nil {
					return err
				}
				return outputJSON(c, captureOutput{ID: res.ID, Name: filepath.Base(res.Path), Path: res.Path})
			})
		},
	}
}

func listCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved screenshots, newest first",
		Flags: []cli.Flag{remoteFlag},
		Action: func(c *cli.Context) error {
			if addr := c.String("remote"); addr != "" {
				return withRemote(addr, func(client *grpcclient.Client) error {
					items, err := client.Refresh(c.Context)
					if err != nil {
						return err
					}
					state := gallery.StateEmpty
					if len(items) > 0 {
						state = gallery.StateHasItems
					}
					return outputJSON(c, listOutput{State: state, Items: items})
				})
			}

			return withLocal(c.Context, conf(), func(o *orchestrator.Orchestrator) error {
				list, err := o.Refresh(c.Context)
				if err != nil {
					return err
				}
				return outputJSON(c, listOutput{State: list.State(), Items: list.Views()})
			})
		},
	}
}

func deleteCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a screenshot",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{remoteFlag},
		Action: func(c *cli.Context) error {
			name, err := nameArg(c)
			if err != nil {
				return outputError(err)
			}
			if addr := c.String("remote"); addr != "" {
				return withRemote(addr, func(client *grpcclient.Client) error {
					if err := client.Delete(c.Context, name); err != nil {
						return err
					}
					return outputJSON(c, deleteOutput{Deleted: name})
				})
			}
			return withLocal(c.Context, conf(), func(o *orchestrator.Orchestrator) error {
				if err := o.Delete(c.Context, name); err != nil {
					return err
				}
				return outputJSON(c, deleteOutput{Deleted: name})
			})
		},
	}
}

func openCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a screenshot in the system image viewer",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := nameArg(c)
			if err != nil {
				return outputError(err)
			}
			return withLocal(c.Context, conf(), func(o *orchestrator.Orchestrator) error {
				return o.Open(c.Context, name)
			})
		},
	}
}

func shareCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "share",
		Usage:     "Print a shareable URL for a screenshot",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := nameArg(c)
			if err != nil {
				return outputError(err)
			}
			return withLocal(c.Context, conf(), func(o *orchestrator.Orchestrator) error {
				h, err := o.Share(name)
				if err != nil {
					return err
				}
				return outputJSON(c, h)
			})
		},
	}
}

func mcpCmd(conf func() *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve screenshot tools over MCP on stdio",
		Action: func(c *cli.Context) error {
			return withLocal(c.Context, conf(), func(o *orchestrator.Orchestrator) error {
				return mcp.Run(o, Version)
			})
		},
	}
}

// withLocal runs fn against an in-process orchestrator.
func withLocal(ctx context.Context, cfg *config.Config, fn func(*orchestrator.Orchestrator) error) error {
	o, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return outputError(err)
	}
	if err := o.Start(ctx); err != nil {
		return outputError(err)
	}
	defer o.Stop()
	if err := fn(o); err != nil {
		return outputError(err)
	}
	return nil
}

func withRemote(addr string, fn func(*grpcclient.Client) error) error {
	client, err := grpcclient.New(addr)
	if err != nil {
		return outputError(err)
	}
	defer client.Close()
	if err := fn(client); err != nil {
		return outputError(err)
	}
	return nil
}

func nameArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 || c.Args().First() == "" {
		return "", apperrors.New(apperrors.InvalidArgument, "exactly one screenshot name is required")
	}
	return c.Args().First(), nil
}

func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI. Already formatted exit errors pass
// through unchanged.
func outputError(err error) error {
	if _, ok := err.(cli.ExitCoder); ok {
		return err
	}
	if ae, ok := apperrors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", ae.Code, ae.UserMessage()), 1)
	}
	return cli.Exit(err.Error(), 1)
}
