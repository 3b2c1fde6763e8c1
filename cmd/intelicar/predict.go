package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ezoic/intelicar/internal/web"
	"github.com/ezoic/intelicar/modelstore"
)

func (a *app) predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Predicts the selling price of one car",
		Flags: []cli.Flag{
			modelFlagDef(),
			&cli.IntFlag{Name: "year", Value: web.DefaultYear},
			&cli.StringFlag{Name: "make", Required: true},
			&cli.StringFlag{Name: "car-model", Required: true},
			&cli.StringFlag{Name: "trim", Required: true},
			&cli.StringFlag{Name: "transmission", Value: "automatic"},
			&cli.IntFlag{Name: "condition", Value: web.DefaultCondition},
			&cli.IntFlag{Name: "odometer", Value: web.DefaultOdometer},
			&cli.StringFlag{Name: "color", Value: web.DefaultColor},
			&cli.StringFlag{Name: "interior", Value: web.DefaultInterior},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			in := web.CarInput{
				Year:         int(cmd.Int("year")),
				Make:         cmd.String("make"),
				Model:        cmd.String("car-model"),
				Trim:         cmd.String("trim"),
				Transmission: cmd.String("transmission"),
				Condition:    int(cmd.Int("condition")),
				Odometer:     int(cmd.Int("odometer")),
				Color:        cmd.String("color"),
				Interior:     cmd.String("interior"),
			}
			in.Clamp()
			if err := in.Validate(); err != nil {
				return err
			}

			dir, err := modelstore.Resolve(a.cfg.ModelsDir(), cmd.String(modelFlag))
			if err != nil {
				return err
			}
			p, err := modelstore.Load(dir)
			if err != nil {
				return err
			}
			f, err := in.Frame(time.Now())
			if err != nil {
				return err
			}
			preds, err := p.Predict(f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s (%s)\n", web.FormatPrice(preds[0]), filepath.Base(dir))
			return err
		},
	}
}
