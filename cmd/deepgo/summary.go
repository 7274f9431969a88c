package main

import (
	"errors"
	"flag"
	"io"

	"github.com/FlavioCFOliveira/deepgo/internal/net"
)

func summaryCmd(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("summary", flag.ContinueOnError)
	flags.SetOutput(stderr)
	modelPath := flags.String("model", "", "saved network")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		flags.Usage()
		return errors.New("summary: -model is required")
	}
	n, err := net.Load(*modelPath)
	if err != nil {
		return err
	}
	return n.Summary(stdout)
}
