// Command deepgo trains and runs networks described by YAML run files.
//
//	deepgo train -config run.yaml
//	deepgo predict -model model.gob -input 0.5,1.2
//	deepgo summary -model model.gob
//	deepgo version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
)

var version = "dev"

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: deepgo <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  train    train a network from a YAML run file")
	fmt.Fprintln(w, "  predict  run a saved network on input vectors")
	fmt.Fprintln(w, "  summary  print the layers of a saved network")
	fmt.Fprintln(w, "  version  print the version")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "deepgo:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return flag.ErrHelp
	}
	switch args[0] {
	case "train":
		return trainCmd(ctx, args[1:], stdout, stderr)
	case "predict":
		return predictCmd(args[1:], stdin, stdout, stderr)
	case "summary":
		return summaryCmd(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, "deepgo", version)
		return nil
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	}
	usage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
