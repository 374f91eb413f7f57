package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"pcode/internal/config"
	"pcode/internal/logger"
	"pcode/internal/runner"
	"pcode/pkg/color"

	"github.com/charmbracelet/log"
)

// Main entry point for the pcode interpreter.
func main() {
	options := runner.Runner{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.BoolVar(&options.Step, "s", false, "Single-step through the program")
	flag.IntVar(&options.Speed, "speed", 0, "Delay between statements in milliseconds (1-2000)")
	flag.IntVar(&options.MaxSteps, "max-steps", 0, "Maximum statements per run (0 = unlimited)")
	flag.IntVar(&options.MaxDepth, "max-depth", config.Default.Run.MaxDepth, "Maximum procedure call depth (0 = default)")
	flag.Int64Var(&options.Seed, "seed", 0, "Seed for RANDOM (0 = from the clock)")
	flag.StringVar(&options.ConfigFile, "config", "", "TOML run configuration file")
	flag.BoolVar(&options.DumpConfig, "dumpconfig", false, "Print the effective configuration and exit")

	flag.Parse()
	args := flag.Args()

	if err := applyConfig(&options); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options] <program.yaml>\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if options.DumpConfig {
		if err := config.Dump(os.Stdout, effectiveConfig(&options)); err != nil {
			log.Fatal("Dumping configuration failed", "error", err)
		}
		return
	}

	if len(args) == 0 {
		log.Fatal("No input file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	options.SourceFile = args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := options.Run(ctx); err != nil {
		stop()
		log.Fatal("Run failed", "error", err)
	}
}

// applyConfig loads the configuration file, if any, under the flags given explicitly.
func applyConfig(options *runner.Runner) error {
	if options.ConfigFile == "" {
		return nil
	}
	cfg, err := config.Load(options.ConfigFile)
	if err != nil {
		return err
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["s"] {
		options.Step = cfg.Run.Step
	}
	if !set["speed"] {
		options.Speed = cfg.Run.Speed
	}
	if !set["max-steps"] {
		options.MaxSteps = cfg.Run.MaxSteps
	}
	if !set["max-depth"] {
		options.MaxDepth = cfg.Run.MaxDepth
	}
	if !set["seed"] {
		options.Seed = cfg.Run.Seed
	}
	if !set["v"] {
		options.Verbose = cfg.Logging.Verbose
	}
	if !set["n"] {
		options.NoColor = cfg.Logging.NoColor
	}
	return nil
}

func effectiveConfig(options *runner.Runner) config.Config {
	return config.Config{
		Run: config.RunConfig{
			Step:     options.Step,
			Speed:    options.Speed,
			MaxSteps: options.MaxSteps,
			MaxDepth: options.MaxDepth,
			Seed:     options.Seed,
		},
		Logging: config.LogConfig{
			Verbose: options.Verbose,
			NoColor: options.NoColor,
		},
	}
}
