package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/ezoic/intelicar/internal/config"
	"github.com/ezoic/intelicar/internal/stages"
	"github.com/ezoic/intelicar/internal/web"
	"github.com/ezoic/intelicar/modelstore"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

var version = "v0.0.1-default"

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

const (
	configFlag  = "config"
	dataDirFlag = "data-dir"
	debugFlag   = "debug"
	modelFlag   = "model"
)

// modelFlagDef returns a new --model flag; flag values are per instance.
func modelFlagDef() cli.Flag {
	return &cli.StringFlag{
		Name:  modelFlag,
		Usage: "Model directory name under the models directory (default: latest)",
	}
}

// app carries the configuration loaded by the root command.
type app struct {
	cfg *config.Config
	out io.Writer
}

func newCommand(out io.Writer) *cli.Command {
	a := &app{out: out}
	return &cli.Command{
		Name:    "intelicar",
		Version: version,
		Usage:   "Used car price prediction: data pipelines, training and web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: configFlag, Usage: "Path to the YAML configuration file (optional)"},
			&cli.StringFlag{Name: dataDirFlag, Usage: "Overrides the data directory of the configuration"},
			&cli.BoolFlag{Name: debugFlag, Usage: "Prints verbose logs (optional, default: false)"},
		},
		Before:  a.before,
		Commands: []*cli.Command{
			a.pipelineCommand("process", "Cleans the raw export and builds the lookup tables", stages.DataProcessing),
			a.pipelineCommand("train", "Splits the cleaned data and trains a new model", stages.DataScience),
			a.reportCommand(),
			a.pipelineCommand("run", "Runs every pipeline in order", stages.Default),
			a.serveCommand(),
			a.predictCommand(),
			a.modelsCommand(),
			a.initConfigCommand(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String(configFlag))
	if err != nil {
		return ctx, err
	}
	if dir := cmd.String(dataDirFlag); dir != "" {
		cfg.DataDir = dir
	}
	level := cfg.LogLevel
	if cmd.Bool(debugFlag) {
		level = "debug"
	}
	log.SetupLogger(level)
	a.cfg = cfg
	return ctx, nil
}

func (a *app) pipelineCommand(name, usage, pipelineName string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, _ *cli.Command) error {
			return stages.NewEnv(a.cfg).Run(ctx, pipelineName)
		},
	}
}

func (a *app) reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Evaluates a trained model and plots its feature importance",
		Flags: []cli.Flag{modelFlagDef()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env := stages.NewEnv(a.cfg)
			env.Model = cmd.String(modelFlag)
			return env.Run(ctx, stages.Reporting)
		},
	}
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serves the price prediction UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)"},
			&cli.BoolFlag{Name: "images", Usage: "Looks up car photos for predictions"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if addr := cmd.String("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			if cmd.Bool("images") {
				a.cfg.Server.EnableImages = true
			}
			opts, err := web.LoadOptions(a.cfg)
			if err != nil {
				return scigoErrors.Wrap(err, "load lookups (run the process pipeline first)")
			}
			srv, err := web.New(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, a.cfg.Server)
		},
	}
}

func (a *app) modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "Lists trained models with their test metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Usage: "Output format [json, yaml]", Value: formatJSON},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			sums, err := modelstore.Summaries(a.cfg.ModelsDir())
			if err != nil {
				return err
			}
			if sums == nil {
				sums = []modelstore.Summary{}
			}
			return a.print(cmd.String("format"), sums)
		},
	}
}

func (a *app) initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:      "init-config",
		Usage:     "Writes the effective configuration to a YAML file",
		ArgsUsage: "PATH",
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return scigoErrors.NewValidationError("path", "argument required", path)
			}
			if err := a.cfg.Save(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.out, "Configuration written to %s\n", path)
			return err
		},
	}
}

func (a *app) print(format string, v any) error {
	switch format {
	case formatYAML, "yml":
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return scigoErrors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case formatJSON, "":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return scigoErrors.Wrap(enc.Encode(v), "encode json")
	}
	return scigoErrors.NewValidationError("format", "must be json or yaml", format)
}
