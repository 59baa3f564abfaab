package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/cap2cal/internal/config"
	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/logging"
	"github.com/hpungsan/cap2cal/internal/mcp"
	"github.com/hpungsan/cap2cal/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"extract": true, "capture": true,
	"list": true, "fetch": true, "favorite": true, "delete": true, "purge": true,
	"export": true, "import": true, "calendar": true,
	"ui": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    ___ __ _ _ __ |_  )__ __ _| |
   / __/ _' | '_ \ / // _/ _' | |
   \__\__,_| .__//___\__\__,_|_|
           |_|

  Turn event posters into calendar entries

  Usage: cap2cal <command> [options]
         cap2cal --help

  MCP server mode requires piped input.`)
}

// logOptions picks log sinks for the run mode. Stdio belongs to the protocol
// client in MCP mode, so only the UI server logs to stderr.
func logOptions(cfg *config.Config, baseDir string) logging.Options {
	return logging.Options{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Dir:    filepath.Join(baseDir, "logs"),
		Stderr: len(os.Args) > 1 && os.Args[1] == "ui",
	}
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cap2cal --help' for usage.\n")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	baseDir, err := ops.DefaultBaseDir()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	closer, err := logging.Init(logOptions(cfg, baseDir))
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer closer.Close()

	database, err := db.Init(baseDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	extractor := ops.NewExtractor(cfg)

	if isCLIMode() {
		return newCLIApp(database, cfg, extractor).Run(os.Args)
	}

	slog.Info("starting MCP server", "version", Version, "extractor", extractor != nil)
	return mcp.Run(database, cfg, extractor, Version)
}
