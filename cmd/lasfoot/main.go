// lasfoot converts raw aerial LiDAR datasets into building footprints and
// parametric roof-form models by orchestrating six external processing
// routines over a per-dataset project workspace.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/lasfoot/internal/config"
	"github.com/banshee-data/lasfoot/internal/engine"
	"github.com/banshee-data/lasfoot/internal/fsutil"
	"github.com/banshee-data/lasfoot/internal/lasd"
	"github.com/banshee-data/lasfoot/internal/monitoring"
	"github.com/banshee-data/lasfoot/internal/pipeline"
	"github.com/banshee-data/lasfoot/internal/runlog"
	"github.com/banshee-data/lasfoot/internal/version"
	"github.com/banshee-data/lasfoot/internal/workspace"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "process":
		handleProcess(args)
	case "describe":
		handleDescribe(args)
	case "version":
		fmt.Printf("lasfoot version %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lasfoot - LiDAR building footprint and roof form pipeline

Usage: lasfoot <command> [options]

Commands:
  process    Run the full six-stage pipeline against one dataset
  describe   Print point/file counts and extent of a LAS dataset
  version    Show lasfoot version
  help       Show this help message

Process Flags:
  --dataset <path>     LAS dataset: a .las/.laz file or a directory of them (required)
  --home <dir>         Home directory containing the scripts/ routines (required)
  --output <dir>       Output directory for workspaces (required, created if missing)
  --cell-size <m>      Elevation raster cell size (default 0.3)
  --class-code <n>     LAS classification code for buildings (default 6)
  --min-height <m>     Minimum building height (default 0.5)
  --params <file>      YAML parameter overrides file
  --dry-run            Report the stage plan without invoking any routine
  --quiet              Suppress diagnostic logging

Examples:
  # Full run
  lasfoot process --dataset ./tiles --home ./engine --output ./out

  # Coarser elevation rasters from a single file
  lasfoot process --dataset survey.las --home ./engine --output ./out --cell-size 0.5

  # Inspect a dataset without processing
  lasfoot describe --dataset ./tiles

Exactly one dataset is processed per invocation. Concurrent runs against the
same dataset name and output directory are not supported.`)
}

func handleProcess(args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	dataset := fs.String("dataset", "", "LAS dataset path (required)")
	home := fs.String("home", "", "Home directory containing processing scripts (required)")
	output := fs.String("output", "", "Output directory (required, created if missing)")
	cellSize := fs.Float64("cell-size", 0.3, "Elevation raster cell size in meters")
	classCode := fs.Int("class-code", 6, "LAS classification code for buildings")
	minHeight := fs.Float64("min-height", 0.5, "Minimum building height in meters")
	paramsFile := fs.String("params", "", "YAML parameter overrides file")
	dryRun := fs.Bool("dry-run", false, "Report the stage plan without executing")
	quiet := fs.Bool("quiet", false, "Suppress diagnostic logging")
	fs.Parse(args)

	if *dataset == "" || *home == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Error: --dataset, --home and --output are required")
		fs.Usage()
		os.Exit(1)
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	params := config.DefaultParams()
	if *paramsFile != "" {
		overrides, err := config.LoadOverrides(*paramsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load parameter overrides: %v\n", err)
			os.Exit(1)
		}
		overrides.Apply(&params)
	}
	// Explicit flags win over the overrides file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cell-size":
			params.CellSize = *cellSize
		case "class-code":
			params.ClassCode = *classCode
		case "min-height":
			params.MinHeight = *minHeight
		}
	})
	if err := params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid parameters: %v\n", err)
		os.Exit(1)
	}

	// The output directory is created up front; the validator only checks it.
	if err := os.MkdirAll(*output, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create output directory: %v\n", err)
		os.Exit(1)
	}

	tools := engine.NewScriptToolbox(*home)
	if !tools.HasScripts() {
		fmt.Fprintf(os.Stderr, "Warning: no scripts/ folder found in %s\n", *home)
	}

	// The run ledger lives in the shared Intermediate scratch container.
	// It is observability only; failing to open it never blocks a run.
	var ledger *runlog.Log
	intermediate := filepath.Join(*output, workspace.IntermediateName)
	if err := os.MkdirAll(intermediate, 0755); err == nil {
		if l, err := runlog.Open(filepath.Join(intermediate, runlog.FileName)); err == nil {
			ledger = l
			defer ledger.Close()
		} else {
			fmt.Fprintf(os.Stderr, "Warning: run ledger unavailable: %v\n", err)
		}
	}

	runner := &pipeline.Runner{
		FS:      fsutil.OSFileSystem{},
		Tools:   tools,
		License: &engine.ScriptLicense{HomeDir: *home},
		Report:  pipeline.NewMessageLog(),
		Ledger:  ledger,
	}

	result := runner.Run(pipeline.Request{
		DatasetPath: *dataset,
		HomeDir:     *home,
		OutputDir:   *output,
		Params:      params,
		DryRun:      *dryRun,
	})

	for _, line := range result.Trail {
		fmt.Println(line)
	}
	if !result.OK {
		os.Exit(1)
	}
}

func handleDescribe(args []string) {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	dataset := fs.String("dataset", "", "LAS dataset path (required)")
	fs.Parse(args)

	if *dataset == "" {
		fmt.Fprintln(os.Stderr, "Error: --dataset is required")
		fs.Usage()
		os.Exit(1)
	}

	info, err := lasd.Describe(fsutil.OSFileSystem{}, *dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to describe dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Dataset:     %s (%s)\n", info.Name, info.Kind)
	fmt.Printf("Files:       %d\n", info.FileCount)
	fmt.Printf("Points:      %d (mean %.0f per file)\n", info.PointCount, info.MeanPointsPerFile())
	lo, hi := info.Extent.Lo(), info.Extent.Hi()
	fmt.Printf("Extent:      (%.2f, %.2f) - (%.2f, %.2f)\n", lo.X, lo.Y, hi.X, hi.Y)
	if info.HasSpatialReference() {
		fmt.Printf("CRS:         %.60s\n", info.CRS)
	} else {
		fmt.Println("CRS:         none (mosaic stage will refuse this dataset)")
	}
	for _, w := range info.Warnings {
		fmt.Printf("Warning:     %s\n", w)
	}
}
