package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"genie/internal/driver"
	"genie/internal/logger"
	"genie/pkg/color"
)

// Main entry point for the genie interpreter.
func main() {
	options := driver.Driver{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.BoolVar(&options.CheckOnly, "c", false, "Check scopes without running")
	flag.BoolVar(&options.ShowStats, "s", false, "Print collector statistics")
	flag.StringVar(&options.ConfigFile, "config", "", "Configuration file (.yaml or .toml)")

	flag.Parse()
	args := flag.Args()

	if options.NoColor {
		color.EnableColor(false)
	}
	logger.Init(options.Verbose, !color.IsColorEnabled())

	if options.Help {
		fmt.Printf("Usage: %s [options] <program.yaml>\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if len(args) == 0 {
		log.Fatal("No input file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	options.SourceFile = args[0]

	err := options.Run(context.Background())
	switch {
	case errors.Is(err, driver.ErrSyntax), errors.Is(err, driver.ErrScope):
		// already reported
		os.Exit(1)
	case err != nil:
		log.Fatal("Execution failed", "error", err)
	}
}
