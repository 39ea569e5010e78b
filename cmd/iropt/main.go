// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/segmentio/ksuid"

	"solmid/internal/config"
	"solmid/internal/diag"
	"solmid/internal/ir"
	"solmid/internal/irasm"
	"solmid/internal/optimize"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: iropt <file.ir> [pipeline.yaml]")
		os.Exit(1)
	}

	path := os.Args[1]
	f, err := os.Open(path)
	if err != nil {
		color.Red("Failed to read file: %s", err)
		os.Exit(1)
	}
	defer f.Close()

	cfg := config.Default()
	if len(os.Args) > 2 {
		loaded, err := config.Load(os.Args[2])
		if err != nil {
			color.Red("Failed to load pipeline config: %s", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	fns, err := irasm.ParseModule(path, f)
	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}

	sink := diag.NewSink(ksuid.New().String())
	pipeline := optimize.New(cfg)

	for _, fn := range fns {
		fmt.Println(ir.PrintFunction(fn))
		if err := pipeline.Run(fn, sink); err != nil {
			color.Red("%s", err)
			os.Exit(1)
		}
		fmt.Println("; optimized:")
		fmt.Println(ir.PrintFunction(fn))
	}

	reporter := diag.NewReporter()
	if report := reporter.FormatAll(sink); report != "" {
		fmt.Print(report)
	}

	if sink.HasFatal() {
		os.Exit(1)
	}

	color.Green("✅ Optimized %d function(s) from %s", len(fns), path)
}
