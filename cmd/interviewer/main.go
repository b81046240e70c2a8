// Package main provides the voice-interviewer entrypoint.
//
// Usage:
//
//	interviewer serve
//	interviewer agent --room <name>
//	interviewer token --room <name> --identity <id>
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		var exitCoder cli.ExitCoder
		if errors.As(err, &exitCoder) {
			os.Exit(exitCoder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:   "interviewer",
		Usage:  "LiveKit voice interviewer",
		Writer: out,
		Commands: []*cli.Command{
			serveCommand(),
			agentCommand(),
			tokenCommand(),
		},
	}
	// main decides the exit code.
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}
