package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cap2cal/internal/config"
	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/ops"
	"github.com/hpungsan/cap2cal/internal/web"
)

// maxRawResponseBytes bounds the model response accepted on stdin.
const maxRawResponseBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, extractor ops.Extractor) *cli.App {
	app := &cli.App{
		Name:    "cap2cal",
		Usage:   "Turn event posters into calendar entries",
		Version: Version,
		Commands: []*cli.Command{
			extractCmd(db),
			captureCmd(db, cfg, extractor),
			listCmd(db),
			fetchCmd(db),
			favoriteCmd(db),
			deleteCmd(db),
			purgeCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			calendarCmd(db, cfg),
			uiCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// extractCmd creates the extract command.
func extractCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Classify a raw extraction response (reads JSON from stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "save", Aliases: []string{"s"}, Usage: "Store the resulting events"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("response must be piped via stdin"))
			}

			raw, err := readStdin(maxRawResponseBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if raw == "" {
				return outputError(errors.NewInvalidRequest("response is empty"))
			}

			output, err := ops.Capture(c.Context, db, nil, ops.CaptureInput{
				RawText: raw,
				Save:    c.Bool("save"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// captureCmd creates the capture command.
func captureCmd(db *sql.DB, cfg *config.Config, extractor ops.Extractor) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Extract events from a poster image",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mime", Usage: "Image MIME type (detected when omitted)"},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Language for extracted text (default from config)"},
			&cli.BoolFlag{Name: "save", Aliases: []string{"s"}, Usage: "Store the resulting events"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one image path is required"))
			}

			lang := c.String("lang")
			if lang == "" && cfg != nil {
				lang = cfg.Language
			}

			output, err := ops.Capture(c.Context, db, extractor, ops.CaptureInput{
				ImagePath: c.Args().First(),
				MimeType:  c.String("mime"),
				Language:  lang,
				Save:      c.Bool("save"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored events, most recently captured first",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only list favorites"},
			&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Page size (max 100)"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted events"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				FavoritesOnly:  c.Bool("favorites"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch an event with its ticket link",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-deleted", Usage: "Allow fetching a soft-deleted event"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, db, ops.FetchInput{
				ID:             c.Args().First(),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Toggle the favorite flag of an event",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "on", Usage: "Mark as favorite instead of toggling"},
			&cli.BoolFlag{Name: "off", Usage: "Unmark as favorite instead of toggling"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FavoriteInput{ID: c.Args().First()}

			on, off := c.Bool("on"), c.Bool("off")
			switch {
			case on && off:
				return outputError(errors.NewInvalidRequest("--on and --off are mutually exclusive"))
			case on || off:
				input.Favorite = &on
			}

			output, err := ops.SetFavorite(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete an event",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, db, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export events to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.cap2cal/exports/events-<timestamp>.jsonl)"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only export favorites"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted events"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				Path:           c.String("path"),
				FavoritesOnly:  c.Bool("favorites"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import events from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|rename"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// calendarCmd creates the calendar command.
func calendarCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "calendar",
		Usage:     "Write events to an iCalendar (.ics) file",
		ArgsUsage: "[id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Calendar file path (default: ~/.cap2cal/exports/<title>-<timestamp>.ics)"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only include favorites when no IDs are given"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportCalendar(c.Context, db, cfg, ops.CalendarInput{
				IDs:           c.Args().Slice(),
				Path:          c.String("path"),
				FavoritesOnly: c.Bool("favorites"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Browse stored events in a local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8484, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port <= 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port: %d", port)))
			}
			return web.Run(web.NewServer(db, cfg, Version, c.String("bind"), port))
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
