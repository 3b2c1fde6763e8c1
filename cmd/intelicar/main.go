// Command intelicar runs the car price pipelines and serves the price
// prediction UI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezoic/intelicar/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		log.LogError(err, "Command failed")
		stop()
		os.Exit(1)
	}
}
