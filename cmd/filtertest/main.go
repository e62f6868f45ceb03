// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alecthomas/kong"

	"github.com/envoyproxy/filtertest/internal/version"
)

type (
	cmd struct {
		Version struct{}  `cmd:"" help:"Show version."`
		Replay  cmdReplay `cmd:"" help:"Replay a scenario file against one of the sample filters and print what each peer received."`
	}
	cmdReplay struct {
		Path    string `arg:"" name:"path" help:"Path to the scenario file." type:"path"`
		Metrics bool   `help:"Print the metrics recorded by the filter in the Prometheus text format."`
		Debug   bool   `help:"Log every simulated event to stderr."`
	}
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Args[1:], replay)
}

func doMain(stdout, stderr io.Writer, args []string, rf replayFn) {
	var c cmd
	parser, err := kong.New(&c,
		kong.Name("filtertest"),
		kong.Description("Replays filter scenarios against the simulated Envoy filter pipeline"),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		log.Fatalf("Error creating parser: %v", err)
	}
	ctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)
	switch ctx.Command() {
	case "version":
		_, _ = fmt.Fprintf(stdout, "filtertest: %s\n", version.Get())
	case "replay <path>":
		if err = rf(c.Replay, stdout, stderr); err != nil {
			log.Fatalf("Error replaying: %v", err)
		}
	default:
		panic("unreachable")
	}
}
