// Package main provides the entry point for the toolgate CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/toolgate/interfaces/cli"
)

func main() {
	app := cli.New()

	if err := app.Execute(context.Background()); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
