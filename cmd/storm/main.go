// Command storm generates data access code from entity declarations.
//
//	storm generate [--watch]
//	storm validate
//	storm describe [entity...]
//	storm apply --driver sqlite --dsn file:app.db
//	storm snapshot -o decl.msgpack
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/syssam/storm/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, cli.ErrInvalid) {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error")
		fmt.Fprintf(os.Stderr, ": %v\n", err)
	}
	os.Exit(1)
}
