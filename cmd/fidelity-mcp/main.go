package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ironsheep/image-fidelity-mcp/internal/config"
	"github.com/ironsheep/image-fidelity-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func printHelp() {
	fmt.Println("fidelity-mcp - MCP server for inpainting mask synthesis and fidelity checks")
	fmt.Println()
	fmt.Println("Usage: fidelity-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <file>  Load configuration from a YAML or JSON file")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  FIDELITY_CONFIG=<file>                 Configuration file (if --config is absent)")
	fmt.Println("  FIDELITY_LOG_LEVEL=debug               Log level: debug, info, warn, error")
	fmt.Println("  FIDELITY_LOG_FORMAT=json               Log format: text or json")
	fmt.Println("  FIDELITY_PARALLEL=false                Disable row-parallel pixel loops")
	fmt.Println("  FIDELITY_MASK_MERGE_OVERLAPPING=true   Merge overlapping mask regions")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Logs are written to stderr.")
}

func main() {
	configPath := os.Getenv("FIDELITY_CONFIG")

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("%s %s\n", server.Name, Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a file path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown argument: %s\n", args[i])
			printHelp()
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the protocol.
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	server.Version = Version
	logger.Debug("starting",
		"name", server.Name,
		"version", Version,
		"build_time", BuildTime,
		"commit", GitCommit,
		"config", configPath,
		"parallel", cfg.Parallel)

	srv := server.New(cfg, logger)
	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
